package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrJobNotFound is returned when no job row exists for the identifier.
	ErrJobNotFound = errors.New("booking: job not found")
	// ErrAssignmentTaken signals that another translator already holds the
	// active tenure for the job.
	ErrAssignmentTaken = errors.New("booking: job already assigned")
	// ErrNotPending signals that an accept raced with a status change.
	ErrNotPending = errors.New("booking: job is not pending")
	// ErrNoActiveAssignment is returned when a mutation needs the active tenure
	// and none exists.
	ErrNoActiveAssignment = errors.New("booking: no active assignment")
	// ErrStatusChanged is returned when a status or tenure move was planned
	// against a status the job no longer has.
	ErrStatusChanged = errors.New("booking: job status changed")
)

const uniqueViolation = "23505"

// Reassignment moves the active tenure. CancelID is the row to close, zero
// when the job had no tenure.
type Reassignment struct {
	CancelID     int64
	TranslatorID int64
	CompletedAt  *time.Time
	CompletedBy  *int64
}

// Completion stamps the active tenure as finished.
type Completion struct {
	By int64
}

// Change is a single job mutation. Every part is applied in one transaction
// together with the audit entry.
//
// Before is the row as the caller read it. When set, only the fields that
// differ between Before and Job are written, and status or tenure moves are
// refused with ErrStatusChanged if the stored status is no longer
// Before.Status. A nil Before writes every column.
type Change struct {
	Job      Job
	Before   *Job
	At       time.Time
	Release  bool
	Reassign *Reassignment
	Complete *Completion
	Audit    *AuditEntry
}

// ReopenParams describes a reopen. When Clone is set a new job row is
// inserted; otherwise the original row is reset to pending.
type ReopenParams struct {
	JobID        int64
	RequesterID  int64
	At           time.Time
	WillExpireAt time.Time
	Clone        *Job
}

// PendingQuery selects pending jobs a translator could serve.
type PendingQuery struct {
	JobType        JobType
	LanguageIDs    []int64
	Gender         Gender
	Certifications []Certification
}

// Tenure scopes the translator side of a JobsQuery.
type Tenure int

const (
	// TenureActive matches jobs the translator currently holds.
	TenureActive Tenure = iota
	// TenureServed matches jobs the translator held to the end: the tenure is
	// still active or was completed.
	TenureServed
)

// JobsQuery selects one user's own jobs. Exactly one of OwnerID and
// TranslatorID is set.
type JobsQuery struct {
	OwnerID      int64
	TranslatorID int64
	Tenure       Tenure
	Statuses     []Status
	Newest       bool
	Limit        int
	Offset       int
}

const jobColumns = `id, user_id, from_language_id, status, immediate, due, duration, gender, certified, job_type,
       customer_phone_type, customer_physical_type, customer_town, admin_comments, flagged, manually_handled,
       by_admin, session_time, end_at, created_at, will_expire_at, withdraw_at, user_email, reference,
       address, instructions, town, email_sent, email_sent_virpal`

// PGRepository stores jobs and assignment history in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, job Job) (Job, error) {
	if job.OwnerID == 0 {
		return Job{}, fmt.Errorf("booking: missing owner id")
	}
	if job.Status == "" {
		job.Status = StatusPending
	}

	const insertSQL = `
INSERT INTO jobs (user_id, from_language_id, status, immediate, due, duration, gender, certified, job_type,
                  customer_phone_type, customer_physical_type, customer_town, admin_comments, flagged,
                  manually_handled, by_admin, session_time, end_at, created_at, will_expire_at, withdraw_at,
                  user_email, reference, address, instructions, town, email_sent, email_sent_virpal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
RETURNING ` + jobColumns

	row := r.pool.QueryRow(ctx, insertSQL, jobArgs(job)...)
	created, err := scanJob(row)
	if err != nil {
		return Job{}, fmt.Errorf("booking: insert job: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("booking: get job: %w", err)
	}
	return job, nil
}

// Assignments returns the full tenure history of a job, oldest first.
func (r *PGRepository) Assignments(ctx context.Context, jobID int64) ([]Assignment, error) {
	const query = `
SELECT id, job_id, user_id, created_at, cancel_at, completed_at, completed_by
FROM translator_job_rel
WHERE job_id = $1
ORDER BY id`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("booking: list assignments: %w", err)
	}
	defer rows.Close()

	history := make([]Assignment, 0, 2)
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.JobID, &a.TranslatorID, &a.CreatedAt, &a.CancelAt, &a.CompletedAt, &a.CompletedBy); err != nil {
			return nil, fmt.Errorf("booking: scan assignment: %w", err)
		}
		history = append(history, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate assignments: %w", err)
	}
	return history, nil
}

// Save applies a Change atomically.
func (r *PGRepository) Save(ctx context.Context, change Change) error {
	if change.Job.ID == 0 {
		return fmt.Errorf("booking: missing job id")
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockJobRow(ctx, tx, change.Job.ID)
	if err != nil {
		return err
	}
	job := change.Job
	if change.Before != nil {
		if change.Moves() && current.Status != change.Before.Status {
			return ErrStatusChanged
		}
		job = MergeJob(current, *change.Before, change.Job)
	}
	if change.Release {
		if err := releaseActive(ctx, tx, change.Job.ID, change.At); err != nil {
			return err
		}
	}
	if change.Reassign != nil {
		if err := reassign(ctx, tx, change.Job.ID, *change.Reassign, change.At); err != nil {
			return err
		}
	}
	if change.Complete != nil {
		if err := completeActive(ctx, tx, change.Job.ID, change.Complete.By, change.At); err != nil {
			return err
		}
	}
	if err := updateJob(ctx, tx, job); err != nil {
		return err
	}
	if change.Audit != nil {
		if err := appendAudit(ctx, tx, *change.Audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit tx: %w", err)
	}
	return nil
}

// Moves reports whether the change touches the status or the tenures.
func (c Change) Moves() bool {
	if c.Release || c.Reassign != nil || c.Complete != nil {
		return true
	}
	return c.Before != nil && c.Before.Status != c.Job.Status
}

// Accept opens a tenure for the translator and flips the job to assigned.
// The job row lock orders concurrent accepts, and the partial unique index on
// active tenures backs it: a conflicting insert means another translator won. A tenure already pinned to the same
// translator counts as theirs.
func (r *PGRepository) Accept(ctx context.Context, jobID, translatorID int64, at time.Time) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockJob(ctx, tx, jobID)
	if err != nil {
		return Assignment{}, err
	}
	if status != StatusPending {
		return Assignment{}, ErrNotPending
	}

	const insertSQL = `
INSERT INTO translator_job_rel (job_id, user_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (job_id) WHERE cancel_at IS NULL DO NOTHING
RETURNING id, job_id, user_id, created_at, cancel_at, completed_at, completed_by`

	var a Assignment
	err = tx.QueryRow(ctx, insertSQL, jobID, translatorID, at).
		Scan(&a.ID, &a.JobID, &a.TranslatorID, &a.CreatedAt, &a.CancelAt, &a.CompletedAt, &a.CompletedBy)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		a, err = activeAssignment(ctx, tx, jobID)
		if err != nil {
			return Assignment{}, err
		}
		if a.TranslatorID != translatorID {
			return Assignment{}, ErrAssignmentTaken
		}
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Assignment{}, ErrAssignmentTaken
		}
		return Assignment{}, fmt.Errorf("booking: insert assignment: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE jobs SET status = $2 WHERE id = $1 AND status = $3`, jobID, StatusAssigned, StatusPending)
	if err != nil {
		return Assignment{}, fmt.Errorf("booking: mark assigned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Assignment{}, ErrNotPending
	}

	actor := translatorID
	if err := appendAudit(ctx, tx, AuditEntry{
		JobID:   jobID,
		ActorID: &actor,
		Action:  "accepted",
		Changes: []map[string]any{{"old_status": StatusPending, "new_status": StatusAssigned}},
	}); err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("booking: commit tx: %w", err)
	}
	return a, nil
}

// Reopen resets or clones a job back to pending, closes every active tenure
// of the original job and records a closed placeholder tenure for the
// requester. It returns the id of the pending job.
func (r *PGRepository) Reopen(ctx context.Context, params ReopenParams) (int64, error) {
	if params.JobID == 0 {
		return 0, fmt.Errorf("booking: missing job id")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockJob(ctx, tx, params.JobID); err != nil {
		return 0, err
	}

	pendingID := params.JobID
	if params.Clone != nil {
		clone := *params.Clone
		const insertSQL = `
INSERT INTO jobs (user_id, from_language_id, status, immediate, due, duration, gender, certified, job_type,
                  customer_phone_type, customer_physical_type, customer_town, admin_comments, flagged,
                  manually_handled, by_admin, session_time, end_at, created_at, will_expire_at, withdraw_at,
                  user_email, reference, address, instructions, town, email_sent, email_sent_virpal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
RETURNING id`
		if err := tx.QueryRow(ctx, insertSQL, jobArgs(clone)...).Scan(&pendingID); err != nil {
			return 0, fmt.Errorf("booking: insert reopened job: %w", err)
		}
	} else {
		const resetSQL = `
UPDATE jobs
SET status = $2, created_at = $3, will_expire_at = $4
WHERE id = $1`
		tag, err := tx.Exec(ctx, resetSQL, params.JobID, StatusPending, params.At, params.WillExpireAt)
		if err != nil {
			return 0, fmt.Errorf("booking: reset job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, ErrJobNotFound
		}
	}

	if err := releaseActive(ctx, tx, params.JobID, params.At); err != nil {
		return 0, err
	}

	const placeholderSQL = `
INSERT INTO translator_job_rel (job_id, user_id, created_at, cancel_at)
VALUES ($1, $2, $3, $3)`
	if _, err := tx.Exec(ctx, placeholderSQL, params.JobID, params.RequesterID, params.At); err != nil {
		return 0, fmt.Errorf("booking: insert placeholder assignment: %w", err)
	}

	actor := params.RequesterID
	if err := appendAudit(ctx, tx, AuditEntry{
		JobID:   params.JobID,
		ActorID: &actor,
		Action:  "reopened",
		Changes: []map[string]any{{"reopened_as": pendingID}},
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("booking: commit tx: %w", err)
	}
	return pendingID, nil
}

// TranslatorBookedAt reports whether the translator holds an active tenure on
// another job whose due equals the given instant exactly.
func (r *PGRepository) TranslatorBookedAt(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1
    FROM translator_job_rel t
    JOIN jobs j ON j.id = t.job_id
    WHERE t.user_id = $1
      AND t.cancel_at IS NULL
      AND j.due = $2
      AND j.id <> $3
)`
	var booked bool
	if err := r.pool.QueryRow(ctx, query, translatorID, due, excludeJobID).Scan(&booked); err != nil {
		return false, fmt.Errorf("booking: check translator booking: %w", err)
	}
	return booked, nil
}

// PendingJobs lists pending jobs matching a translator profile.
func (r *PGRepository) PendingJobs(ctx context.Context, q PendingQuery) ([]Job, error) {
	if len(q.LanguageIDs) == 0 || len(q.Certifications) == 0 {
		return nil, nil
	}
	certs := make([]string, len(q.Certifications))
	for i, c := range q.Certifications {
		certs[i] = string(c)
	}

	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = $1
  AND job_type = $2
  AND from_language_id = ANY($3)
  AND certified = ANY($4)
  AND (gender = '' OR gender = $5)
ORDER BY due, id`

	rows, err := r.pool.Query(ctx, query, StatusPending, q.JobType, q.LanguageIDs, certs, q.Gender)
	if err != nil {
		return nil, fmt.Errorf("booking: list pending jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0, 8)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate jobs: %w", err)
	}
	return jobs, nil
}

// ListJobs returns one page of a user's jobs ordered by due, and the number of
// jobs matching the query. A zero Limit returns every match.
func (r *PGRepository) ListJobs(ctx context.Context, q JobsQuery) ([]Job, int, error) {
	statuses := make([]string, len(q.Statuses))
	for i, st := range q.Statuses {
		statuses[i] = string(st)
	}

	var (
		where string
		args  = []any{statuses}
	)
	switch {
	case q.OwnerID != 0:
		where = `j.user_id = $2`
		args = append(args, q.OwnerID)
	case q.TranslatorID != 0:
		tenure := `t.cancel_at IS NULL`
		if q.Tenure == TenureServed {
			tenure = `(t.cancel_at IS NULL OR t.completed_at IS NOT NULL)`
		}
		where = `EXISTS (SELECT 1 FROM translator_job_rel t WHERE t.job_id = j.id AND t.user_id = $2 AND ` + tenure + `)`
		args = append(args, q.TranslatorID)
	default:
		return nil, 0, fmt.Errorf("booking: list jobs without owner or translator")
	}
	filter := `FROM jobs j WHERE j.status = ANY($1) AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("booking: count jobs: %w", err)
	}

	order := `j.due, j.id`
	if q.Newest {
		order = `j.due DESC, j.id DESC`
	}
	query := `SELECT ` + prefixed(jobColumns, "j.") + ` ` + filter + ` ORDER BY ` + order
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, q.Limit, max(q.Offset, 0))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("booking: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0, 16)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("booking: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("booking: iterate jobs: %w", err)
	}
	return jobs, total, nil
}

// prefixed qualifies every column of a comma separated list with prefix.
func prefixed(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ActiveAssignees maps each job id to the translator holding its active tenure.
// Jobs without a tenure are absent from the result.
func (r *PGRepository) ActiveAssignees(ctx context.Context, jobIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT job_id, user_id FROM translator_job_rel WHERE job_id = ANY($1) AND cancel_at IS NULL`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("booking: list assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jobID, userID int64
		if err := rows.Scan(&jobID, &userID); err != nil {
			return nil, fmt.Errorf("booking: scan assignee: %w", err)
		}
		out[jobID] = userID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate assignees: %w", err)
	}
	return out, nil
}

// UpdateDistance upserts the travel side record of a job.
func (r *PGRepository) UpdateDistance(ctx context.Context, jobID int64, distance, travelTime string) error {
	const upsertSQL = `
INSERT INTO distances (job_id, distance, time)
VALUES ($1, $2, $3)
ON CONFLICT (job_id) DO UPDATE SET distance = EXCLUDED.distance, time = EXCLUDED.time`
	if _, err := r.pool.Exec(ctx, upsertSQL, jobID, distance, travelTime); err != nil {
		return fmt.Errorf("booking: update distance: %w", err)
	}
	return nil
}

func updateJob(ctx context.Context, tx pgx.Tx, job Job) error {
	const updateSQL = `
UPDATE jobs
SET from_language_id = $2, status = $3, immediate = $4, due = $5, duration = $6, gender = $7, certified = $8,
    job_type = $9, customer_phone_type = $10, customer_physical_type = $11, customer_town = $12,
    admin_comments = $13, flagged = $14, manually_handled = $15, by_admin = $16, session_time = $17,
    end_at = $18, created_at = $19, will_expire_at = $20, withdraw_at = $21, user_email = $22,
    reference = $23, address = $24, instructions = $25, town = $26, email_sent = $27, email_sent_virpal = $28
WHERE id = $1`

	args := append([]any{job.ID}, jobArgs(job)[1:]...)
	tag, err := tx.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("booking: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// lockJob takes the row lock that serializes every mutation of a job and its
// tenures.
func lockJob(ctx context.Context, tx pgx.Tx, jobID int64) (Status, error) {
	var status Status
	err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrJobNotFound
		}
		return "", fmt.Errorf("booking: lock job: %w", err)
	}
	return status, nil
}

func lockJobRow(ctx context.Context, tx pgx.Tx, jobID int64) (Job, error) {
	job, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("booking: lock job: %w", err)
	}
	return job, nil
}

func releaseActive(ctx context.Context, tx pgx.Tx, jobID int64, at time.Time) error {
	if _, err := tx.Exec(ctx, `UPDATE translator_job_rel SET cancel_at = $2 WHERE job_id = $1 AND cancel_at IS NULL`, jobID, at); err != nil {
		return fmt.Errorf("booking: release assignment: %w", err)
	}
	return nil
}

func reassign(ctx context.Context, tx pgx.Tx, jobID int64, change Reassignment, at time.Time) error {
	if change.TranslatorID == 0 {
		return fmt.Errorf("booking: reassign without translator")
	}
	if change.CancelID != 0 {
		tag, err := tx.Exec(ctx, `UPDATE translator_job_rel SET cancel_at = $3 WHERE id = $1 AND job_id = $2 AND cancel_at IS NULL`, change.CancelID, jobID, at)
		if err != nil {
			return fmt.Errorf("booking: cancel assignment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNoActiveAssignment
		}
	}

	const insertSQL = `
INSERT INTO translator_job_rel (job_id, user_id, created_at, completed_at, completed_by)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertSQL, jobID, change.TranslatorID, at, change.CompletedAt, change.CompletedBy); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAssignmentTaken
		}
		return fmt.Errorf("booking: insert assignment: %w", err)
	}
	return nil
}

func completeActive(ctx context.Context, tx pgx.Tx, jobID, by int64, at time.Time) error {
	const updateSQL = `
UPDATE translator_job_rel
SET completed_at = $2, completed_by = $3
WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL`
	tag, err := tx.Exec(ctx, updateSQL, jobID, at, by)
	if err != nil {
		return fmt.Errorf("booking: complete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveAssignment
	}
	return nil
}

func activeAssignment(ctx context.Context, tx pgx.Tx, jobID int64) (Assignment, error) {
	const query = `
SELECT id, job_id, user_id, created_at, cancel_at, completed_at, completed_by
FROM translator_job_rel
WHERE job_id = $1 AND cancel_at IS NULL`
	var a Assignment
	err := tx.QueryRow(ctx, query, jobID).Scan(&a.ID, &a.JobID, &a.TranslatorID, &a.CreatedAt, &a.CancelAt, &a.CompletedAt, &a.CompletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNoActiveAssignment
		}
		return Assignment{}, fmt.Errorf("booking: load active assignment: %w", err)
	}
	return a, nil
}

func appendAudit(ctx context.Context, tx pgx.Tx, entry AuditEntry) error {
	changes := entry.Changes
	if changes == nil {
		changes = []map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"changes": changes})
	if err != nil {
		return fmt.Errorf("booking: marshal audit payload: %w", err)
	}

	var actorID any
	if entry.ActorID != nil {
		actorID = *entry.ActorID
	}

	const insertSQL = `
INSERT INTO job_audit_log (job_id, actor_id, action, payload)
VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertSQL, entry.JobID, actorID, entry.Action, payload); err != nil {
		return fmt.Errorf("booking: insert audit entry: %w", err)
	}
	return nil
}

// jobArgs returns the insert arguments in column order, owner id first.
func jobArgs(j Job) []any {
	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return []any{
		j.OwnerID, j.FromLanguageID, j.Status, j.Immediate, j.Due, j.Duration, j.Gender, j.Certification, j.JobType,
		j.CustomerPhoneType, j.CustomerPhysicalType, j.CustomerTown, j.AdminComments, j.Flagged,
		j.ManuallyHandled, j.ByAdmin, j.SessionTime, j.EndAt, createdAt, j.WillExpireAt, j.WithdrawAt,
		j.UserEmail, j.Reference, j.Address, j.Instructions, j.Town, j.EmailSent, j.EmailSentVirpal,
	}
}

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.FromLanguageID, &j.Status, &j.Immediate, &j.Due, &j.Duration, &j.Gender,
		&j.Certification, &j.JobType, &j.CustomerPhoneType, &j.CustomerPhysicalType, &j.CustomerTown,
		&j.AdminComments, &j.Flagged, &j.ManuallyHandled, &j.ByAdmin, &j.SessionTime, &j.EndAt, &j.CreatedAt,
		&j.WillExpireAt, &j.WithdrawAt, &j.UserEmail, &j.Reference, &j.Address, &j.Instructions, &j.Town,
		&j.EmailSent, &j.EmailSentVirpal,
	)
	return j, err
}
