package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingflow/booking"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateJobSameTranslatorIsNotAChange(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	ack, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorID: translatorID}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.JobID)
	assert.Len(t, h.store.history[1], 1)
	assert.Empty(t, h.notifier.calls)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorEmail: translator.Email}, admin)
	require.NoError(t, err)
	assert.Len(t, h.store.history[1], 1)
}

func TestUpdateJobReassignsTranslator(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	ack, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorEmail: other.Email}, admin)
	require.NoError(t, err)
	assert.True(t, ack.Notified)

	history := h.store.history[1]
	require.Len(t, history, 2)
	assert.False(t, history[0].Active())
	current, held := booking.Current(history)
	require.True(t, held)
	assert.Equal(t, otherID, current.TranslatorID)

	assert.Equal(t, []string{"SendTranslatorChanged"}, h.notifier.calls)
	require.NotNil(t, h.notifier.previous)
	assert.Equal(t, translatorID, h.notifier.previous.ID)

	require.Len(t, h.store.audit, 1)
	assert.Equal(t, "updated", h.store.audit[0].Action)
	assert.Contains(t, h.store.audit[0].Changes, map[string]any{"old_translator": translator.Email, "new_translator": other.Email})
}

func TestUpdateJobPendingToAssigned(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, _ := assignedJob()
	job.Status = booking.StatusPending
	h.store.put(job)

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{
		TranslatorID: translatorID,
		Status:       booking.StatusAssigned,
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusAssigned, h.store.jobs[1].Status)
	assert.Equal(t, []string{
		"SendJobAccepted",
		"SendNewTranslatorAssigned",
		"PushSessionReminders",
		"SendTranslatorChanged",
	}, h.notifier.calls)
}

func TestUpdateJobPendingToAssignedNeedsTranslator(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, _ := assignedJob()
	job.Status = booking.StatusPending
	h.store.put(job)

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusAssigned}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, h.store.jobs[1].Status)
	assert.Empty(t, h.notifier.calls)
}

func TestUpdateJobWithdraw(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusWithdrawBefore24}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusWithdrawBefore24, h.store.jobs[1].Status)
	assert.Equal(t, []string{"SendWithdrawn"}, h.notifier.calls)
}

func TestUpdateJobTimedOutWithoutComment(t *testing.T) {
	for _, from := range []booking.Status{booking.StatusAssigned, booking.StatusCompleted, booking.StatusWithdrawAfter24} {
		t.Run(string(from), func(t *testing.T) {
			h := newHarness(t, due.Add(-48*time.Hour))
			job, tenure := assignedJob()
			job.Status = from
			job.AdminComments = "earlier note"
			h.store.put(job, tenure)

			_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusTimedOut}, admin)
			require.NoError(t, err)
			assert.Equal(t, booking.StatusTimedOut, h.store.jobs[1].Status)
			assert.Equal(t, "earlier note", h.store.jobs[1].AdminComments)
		})
	}
}

func TestUpdateJobTimedOutStoresComment(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{
		Status:        booking.StatusTimedOut,
		AdminComments: ptr("customer unreachable"),
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusTimedOut, h.store.jobs[1].Status)
	assert.Equal(t, "customer unreachable", h.store.jobs[1].AdminComments)
}

func TestUpdateJobTimedOutToAssignedNeedsTranslator(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, _ := assignedJob()
	job.Status = booking.StatusTimedOut
	h.store.put(job)

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusAssigned}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusTimedOut, h.store.jobs[1].Status)
	_, held := booking.Current(h.store.history[1])
	assert.False(t, held)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusAssigned, TranslatorID: otherID}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAssigned, h.store.jobs[1].Status)
	current, held := booking.Current(h.store.history[1])
	require.True(t, held)
	assert.Equal(t, otherID, current.TranslatorID)
	assert.Equal(t, []string{"SendJobAccepted", "SendTranslatorChanged"}, h.notifier.calls)
}

func TestUpdateJobFallsBackToCompletedTenure(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, tenure := assignedJob()
	job.Status = booking.StatusCompleted
	done := due.Add(time.Hour)
	tenure.CancelAt = &done
	tenure.CompletedAt = &done
	tenure.CompletedBy = ptr(translatorID)
	h.store.put(job, tenure)

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorID: translatorID}, admin)
	require.NoError(t, err)
	assert.Len(t, h.store.history[1], 1)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorID: otherID}, admin)
	require.NoError(t, err)
	current, held := booking.Current(h.store.history[1])
	require.True(t, held)
	assert.Equal(t, otherID, current.TranslatorID)
	require.NotNil(t, current.CompletedAt)
	assert.Equal(t, done, *current.CompletedAt)
	require.NotNil(t, h.notifier.previous)
	assert.Equal(t, translatorID, h.notifier.previous.ID)
}

// interleavingStore runs between once, right before the first Save, to model
// another request committing after the manager read the job.
type interleavingStore struct {
	*memStore
	between func()
}

func (s *interleavingStore) Save(ctx context.Context, change booking.Change) error {
	if s.between != nil {
		run := s.between
		s.between = nil
		run()
	}
	return s.memStore.Save(ctx, change)
}

func TestUpdateJobKeepsConcurrentAccept(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, _ := assignedJob()
	job.Status = booking.StatusPending
	h.store.put(job)
	h.manager.store = &interleavingStore{memStore: h.store, between: func() {
		_, err := h.store.Accept(context.Background(), 1, otherID, due.Add(-48*time.Hour))
		require.NoError(t, err)
	}}

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Reference: ptr("PO-1")}, admin)
	require.NoError(t, err)

	stored := h.store.jobs[1]
	assert.Equal(t, booking.StatusAssigned, stored.Status)
	assert.Equal(t, "PO-1", stored.Reference)
	current, held := booking.Current(h.store.history[1])
	require.True(t, held)
	assert.Equal(t, otherID, current.TranslatorID)
}

func TestUpdateJobStatusMoveLosesToConcurrentAccept(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	job, _ := assignedJob()
	job.Status = booking.StatusTimedOut
	h.store.put(job)
	h.manager.store = &interleavingStore{memStore: h.store, between: func() {
		stored := h.store.jobs[1]
		stored.Status = booking.StatusPending
		h.store.jobs[1] = stored
		_, err := h.store.Accept(context.Background(), 1, translatorID, due.Add(-48*time.Hour))
		require.NoError(t, err)
	}}

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{
		Status:       booking.StatusAssigned,
		TranslatorID: otherID,
	}, admin)
	require.ErrorIs(t, err, ErrState)
	assert.Equal(t, booking.StatusAssigned, h.store.jobs[1].Status)
	current, held := booking.Current(h.store.history[1])
	require.True(t, held)
	assert.Equal(t, translatorID, current.TranslatorID)
	assert.Empty(t, h.notifier.calls)
}

func TestUpdateJobDueAndLanguage(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{
		Due:            ptr(due.Add(2 * time.Hour)),
		FromLanguageID: 6,
		Reference:      ptr("REF-2"),
	}, admin)
	require.NoError(t, err)

	job := h.store.jobs[1]
	assert.Equal(t, due.Add(2*time.Hour), job.Due)
	assert.Equal(t, int64(6), job.FromLanguageID)
	assert.Equal(t, "REF-2", job.Reference)
	assert.Equal(t, []string{"SendDateChanged", "SendLanguageChanged"}, h.notifier.calls)
}

func TestUpdateJobPastDueSkipsChangeMail(t *testing.T) {
	h := newHarness(t, due.Add(time.Hour))
	h.store.put(assignedJob())

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{
		Due:          ptr(due.Add(-time.Hour)),
		TranslatorID: otherID,
	}, admin)
	require.NoError(t, err)
	assert.Empty(t, h.notifier.calls)
	assert.Len(t, h.store.history[1], 2)
}

func TestUpdateJobStartedToCompleted(t *testing.T) {
	h := newHarness(t, due.Add(time.Hour))
	job, tenure := assignedJob()
	job.Status = booking.StatusStarted
	h.store.put(job, tenure)

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusCompleted}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusStarted, h.store.jobs[1].Status)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: booking.StatusCompleted, SessionTime: "1:05:00"}, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, h.store.jobs[1].Status)
	assert.Equal(t, "01 tim 05 min", h.notifier.session)
	assert.Equal(t, "invoice", h.notifier.framing)
}

func TestUpdateJobRejects(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	h.store.put(assignedJob())

	_, err := h.manager.UpdateJob(context.Background(), 1, UpdateParams{}, customer)
	require.ErrorIs(t, err, ErrRole)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{Status: "archived"}, admin)
	require.ErrorIs(t, err, ErrValidation)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorEmail: "nobody@example.se"}, admin)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.manager.UpdateJob(context.Background(), 1, UpdateParams{TranslatorID: customerID}, admin)
	require.ErrorIs(t, err, ErrValidation)
}

func TestTransitionsCoverEveryStatus(t *testing.T) {
	for _, s := range booking.Statuses {
		assert.Contains(t, transitions, s, "status %s has no transition", s)
	}
}

func TestTerminalStatusesNeverMove(t *testing.T) {
	h := newHarness(t, due.Add(-48*time.Hour))
	for _, from := range []booking.Status{booking.StatusWithdrawBefore24, booking.StatusNotCarriedOutCustomer} {
		for _, to := range booking.Statuses {
			job := booking.Job{Status: from}
			u := &statusUpdate{job: &job, next: to, translatorChanged: true, sessionTime: "1:00:00", adminComment: "x"}
			assert.False(t, h.manager.applyStatus(u), fmt.Sprintf("%s -> %s", from, to))
			assert.Equal(t, from, job.Status)
		}
	}
}

func TestSessionText(t *testing.T) {
	assert.Equal(t, "01 tim 30 min", sessionText("1:30:0"))
	assert.Equal(t, "26 tim 05 min", sessionText("26:5:12"))
	assert.Equal(t, "soon", sessionText("soon"))

	assert.Equal(t, "1:30:0", elapsedClock(90*time.Minute))
	assert.Equal(t, "26:0:5", elapsedClock(26*time.Hour+5*time.Second))
}
