package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

// UpdateParams is an admin edit of a job. Nil and zero fields are left as
// they are.
type UpdateParams struct {
	Due             *time.Time
	FromLanguageID  int64
	Status          booking.Status
	TranslatorID    int64
	TranslatorEmail string
	AdminComments   *string
	Reference       *string
	SessionTime     string
}

// Ack acknowledges an update without echoing the job back.
type Ack struct {
	JobID    int64
	Notified bool
}

type translatorChange struct {
	changed  bool
	previous *directory.User
	next     directory.User
	reassign *booking.Reassignment
	log      map[string]any
}

// UpdateJob applies an admin edit. The translator, the due time, the
// language and the status are changed in that order and committed together
// with one audit entry. Notifications follow only while the job is still in
// the future.
func (m *Manager) UpdateJob(ctx context.Context, id int64, p UpdateParams, editor directory.User) (Ack, error) {
	if !editor.Role.IsStaff() {
		return Ack{}, m.fail(ErrRole, locale.CancelNotAllowed)
	}
	if p.Status != "" && !p.Status.Valid() {
		return Ack{}, m.fail(ErrValidation, locale.FieldRequired)
	}
	job, err := m.loadJob(ctx, id)
	if err != nil {
		return Ack{}, err
	}
	before := job
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		return Ack{}, fmt.Errorf("lifecycle: load customer of job %d: %w", job.ID, err)
	}
	history, err := m.store.Assignments(ctx, job.ID)
	if err != nil {
		return Ack{}, fmt.Errorf("lifecycle: load assignments: %w", err)
	}
	current, held := booking.Current(history)
	// A job whose tenure was closed after completion still has a translator
	// on record.
	recorded, known := current, held
	if !known {
		recorded, known = booking.LastCompleted(history)
	}

	now := m.now()
	var changes []map[string]any

	tc, err := m.changeTranslator(ctx, recorded, known, held, p.TranslatorID, p.TranslatorEmail)
	if err != nil {
		return Ack{}, err
	}
	if tc.changed {
		changes = append(changes, tc.log)
	}

	previousDue := job.Due
	dueChanged := m.changeDue(&job, p.Due)
	if dueChanged {
		changes = append(changes, map[string]any{"old_due": previousDue, "new_due": job.Due})
	}

	previousLanguage := job.FromLanguageID
	languageChanged := p.FromLanguageID != 0 && p.FromLanguageID != job.FromLanguageID
	if languageChanged {
		job.FromLanguageID = p.FromLanguageID
		changes = append(changes, map[string]any{"old_lang": previousLanguage, "new_lang": job.FromLanguageID})
	}

	// The status handlers see the translator that holds the job after this
	// update.
	var holder *directory.User
	switch {
	case tc.changed:
		holder = &tc.next
	case held:
		if t, err := m.dir.UserByID(ctx, current.TranslatorID); err == nil {
			holder = &t
		} else {
			m.logger.Warn("load translator failed", slog.Int64("translator_id", current.TranslatorID), slog.Any("error", err))
		}
	}

	adminComment := ""
	if p.AdminComments != nil {
		adminComment = *p.AdminComments
	}
	previousStatus := job.Status
	update := &statusUpdate{
		job:               &job,
		next:              p.Status,
		translatorChanged: tc.changed,
		sessionTime:       p.SessionTime,
		adminComment:      adminComment,
		customer:          customer,
		translator:        holder,
		now:               now,
	}
	if m.applyStatus(update) {
		changes = append(changes, map[string]any{"old_status": previousStatus, "new_status": job.Status})
	}

	if p.AdminComments != nil {
		job.AdminComments = *p.AdminComments
	}
	if p.Reference != nil {
		job.Reference = *p.Reference
	}

	editorID := editor.ID
	change := booking.Change{
		Job:      job,
		Before:   &before,
		At:       now,
		Reassign: tc.reassign,
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			ActorID: &editorID,
			Action:  "updated",
			Changes: changes,
		},
	}
	if err := m.store.Save(ctx, change); err != nil {
		if c := m.conflict(err); c != nil {
			return Ack{}, c
		}
		return Ack{}, fmt.Errorf("lifecycle: update job %d: %w", job.ID, err)
	}
	m.logger.Info("job updated",
		slog.Int64("job_id", job.ID),
		slog.Int64("editor_id", editor.ID),
		slog.Int("changes", len(changes)),
	)

	ack := Ack{JobID: job.ID, Notified: true}
	for _, effect := range update.effects {
		if !m.notified(effect(ctx), job.ID, "status change") {
			ack.Notified = false
		}
	}

	if !job.Due.After(now) {
		return ack, nil
	}
	if dueChanged {
		if !m.notified(m.notifier.SendDateChanged(ctx, job, customer, holder, previousDue), job.ID, "date changed mail") {
			ack.Notified = false
		}
	}
	if tc.changed {
		if !m.notified(m.notifier.SendTranslatorChanged(ctx, job, customer, tc.previous, tc.next), job.ID, "translator changed mail") {
			ack.Notified = false
		}
	}
	if languageChanged {
		if !m.notified(m.notifier.SendLanguageChanged(ctx, job, customer, holder, previousLanguage), job.ID, "language changed mail") {
			ack.Notified = false
		}
	}
	return ack, nil
}

// changeTranslator resolves the requested translator, by email first, and
// plans the reassignment. recorded is the translator on record, known when
// one exists; only an active tenure (held) is closed. Requesting the
// translator on record is not a change.
func (m *Manager) changeTranslator(ctx context.Context, recorded booking.Assignment, known, held bool, requestedID int64, requestedEmail string) (translatorChange, error) {
	requestedEmail = strings.TrimSpace(requestedEmail)
	if requestedEmail == "" && (requestedID == 0 || (known && requestedID == recorded.TranslatorID)) {
		return translatorChange{}, nil
	}

	var (
		next directory.User
		err  error
	)
	if requestedEmail != "" {
		next, err = m.dir.UserByEmail(ctx, requestedEmail)
	} else {
		next, err = m.dir.UserByID(ctx, requestedID)
	}
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			who := requestedEmail
			if who == "" {
				who = fmt.Sprint(requestedID)
			}
			return translatorChange{}, m.fail(ErrNotFound, locale.TranslatorMissing, who)
		}
		return translatorChange{}, fmt.Errorf("lifecycle: resolve translator: %w", err)
	}
	if next.ID == 0 || (known && next.ID == recorded.TranslatorID) {
		return translatorChange{}, nil
	}
	if next.Role != directory.RoleTranslator {
		return translatorChange{}, m.fail(ErrValidation, locale.TranslatorMissing, next.Email)
	}

	tc := translatorChange{
		changed:  true,
		next:     next,
		reassign: &booking.Reassignment{TranslatorID: next.ID},
		log:      map[string]any{"new_translator": next.Email},
	}
	if held {
		tc.reassign.CancelID = recorded.ID
	}
	if known {
		// The new tenure inherits the completion stamps of the one it replaces.
		tc.reassign.CompletedAt = recorded.CompletedAt
		tc.reassign.CompletedBy = recorded.CompletedBy
		previous, err := m.dir.UserByID(ctx, recorded.TranslatorID)
		if err != nil {
			m.logger.Warn("load previous translator failed", slog.Int64("translator_id", recorded.TranslatorID), slog.Any("error", err))
		} else {
			tc.previous = &previous
			tc.log["old_translator"] = previous.Email
		}
	}
	return tc, nil
}

// changeDue moves the due time and reports whether it changed.
func (m *Manager) changeDue(job *booking.Job, due *time.Time) bool {
	if due == nil || due.Equal(job.Due) {
		return false
	}
	job.Due = *due
	return true
}
