// Package actors drives the booking repository from competing goroutines.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookingflow/booking"
)

// Seed identifies the fixed users the actors work with.
type Seed struct {
	CustomerID    int64
	AdminID       int64
	TranslatorIDs []int64
}

func pause(minMS, spreadMS int) {
	time.Sleep(time.Duration(minMS+rand.Intn(spreadMS)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

// pickJob returns a random job in the given status, or 0 when there is none.
func pickJob(ctx context.Context, pool *pgxpool.Pool, status booking.Status) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `SELECT id FROM jobs WHERE status = $1 ORDER BY random() LIMIT 1`, status).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// fatal reports whether an actor should stop. Lost races and connections
// killed by the chaos actor are part of the run; only cancellation ends it.
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Creator keeps the pool of pending jobs topped up.
func Creator(ctx context.Context, repo *booking.PGRepository, seed Seed, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		due := time.Now().Add(time.Duration(25+rand.Intn(200)) * time.Hour).Truncate(time.Minute)
		expires := due.Add(-90 * time.Minute)
		_, err := repo.Create(ctx, booking.Job{
			OwnerID:        seed.CustomerID,
			FromLanguageID: 1,
			Status:         booking.StatusPending,
			Due:            due,
			Duration:       60,
			JobType:        booking.JobTypePaid,
			WillExpireAt:   &expires,
		})
		if fatal(err) {
			return fmt.Errorf("creator: %w", err)
		}
		pause(40, 40)
	}
}

// Acceptor races the other translators for random pending jobs. Losing is
// expected under contention.
func Acceptor(ctx context.Context, pool *pgxpool.Pool, repo *booking.PGRepository, translatorID int64, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		jobID, err := pickJob(ctx, pool, booking.StatusPending)
		if err == nil && jobID != 0 {
			_, err = repo.Accept(ctx, jobID, translatorID, time.Now())
		}
		if fatal(err) {
			return fmt.Errorf("acceptor %d: %w", translatorID, err)
		}
		pause(5, 15)
	}
}

// Withdrawer hands assigned jobs back to the pool the way a translator
// cancelling early does: the tenure is released and the job is pending again.
func Withdrawer(ctx context.Context, pool *pgxpool.Pool, repo *booking.PGRepository, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		jobID, err := pickJob(ctx, pool, booking.StatusAssigned)
		if err == nil && jobID != 0 {
			err = withdraw(ctx, repo, jobID)
		}
		if fatal(err) {
			return fmt.Errorf("withdrawer: %w", err)
		}
		pause(20, 40)
	}
}

func withdraw(ctx context.Context, repo *booking.PGRepository, jobID int64) error {
	job, err := repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	history, err := repo.Assignments(ctx, jobID)
	if err != nil {
		return err
	}
	current, held := booking.Current(history)
	if !held {
		return nil
	}
	now := time.Now()
	before := job
	job.Status = booking.StatusPending
	job.CreatedAt = now
	actor := current.TranslatorID
	return repo.Save(ctx, booking.Change{
		Job:     job,
		Before:  &before,
		At:      now,
		Release: true,
		Audit: &booking.AuditEntry{
			JobID:   jobID,
			ActorID: &actor,
			Action:  "translator_withdrew",
		},
	})
}

// Reassigner moves assigned jobs to another translator like an admin edit.
func Reassigner(ctx context.Context, pool *pgxpool.Pool, repo *booking.PGRepository, seed Seed, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		jobID, err := pickJob(ctx, pool, booking.StatusAssigned)
		if err == nil && jobID != 0 {
			err = reassignJob(ctx, repo, seed, jobID)
		}
		if fatal(err) {
			return fmt.Errorf("reassigner: %w", err)
		}
		pause(50, 50)
	}
}

func reassignJob(ctx context.Context, repo *booking.PGRepository, seed Seed, jobID int64) error {
	job, err := repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	history, err := repo.Assignments(ctx, jobID)
	if err != nil {
		return err
	}
	current, held := booking.Current(history)
	if !held {
		return nil
	}
	next := seed.TranslatorIDs[rand.Intn(len(seed.TranslatorIDs))]
	if next == current.TranslatorID {
		return nil
	}
	actor := seed.AdminID
	return repo.Save(ctx, booking.Change{
		Job:    job,
		Before: &job,
		At:     time.Now(),
		Reassign: &booking.Reassignment{
			CancelID:     current.ID,
			TranslatorID: next,
			CompletedAt:  current.CompletedAt,
			CompletedBy:  current.CompletedBy,
		},
		Audit: &booking.AuditEntry{
			JobID:   jobID,
			ActorID: &actor,
			Action:  "updated",
			Changes: []map[string]any{{"new_translator": next}},
		},
	})
}

// Reopener puts assigned jobs back to pending in place.
func Reopener(ctx context.Context, pool *pgxpool.Pool, repo *booking.PGRepository, seed Seed, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		jobID, err := pickJob(ctx, pool, booking.StatusAssigned)
		if err == nil && jobID != 0 {
			now := time.Now()
			_, err = repo.Reopen(ctx, booking.ReopenParams{
				JobID:        jobID,
				RequesterID:  seed.AdminID,
				At:           now,
				WillExpireAt: now.Add(time.Hour),
			})
		}
		if fatal(err) {
			return fmt.Errorf("reopener: %w", err)
		}
		pause(100, 100)
	}
}
