package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

// statusUpdate carries one requested status change through the transition
// table. Handlers mutate job in place and queue effects that run after the
// change is committed.
type statusUpdate struct {
	job               *booking.Job
	next              booking.Status
	translatorChanged bool
	sessionTime       string
	adminComment      string
	customer          directory.User
	translator        *directory.User
	now               time.Time
	effects           []func(ctx context.Context) error
}

func (u *statusUpdate) after(effect func(ctx context.Context) error) {
	u.effects = append(u.effects, effect)
}

// transition applies the move out of one status and reports whether the
// status changed.
type transition func(m *Manager, u *statusUpdate) bool

// transitions is keyed by the current status. Every status has an entry;
// terminal statuses never move.
var transitions = map[booking.Status]transition{
	booking.StatusPending:               fromPending,
	booking.StatusAssigned:              fromAssigned,
	booking.StatusStarted:               fromStarted,
	booking.StatusCompleted:             toTimedOut,
	booking.StatusTimedOut:              fromTimedOut,
	booking.StatusWithdrawBefore24:      terminal,
	booking.StatusWithdrawAfter24:       toTimedOut,
	booking.StatusNotCarriedOutCustomer: terminal,
}

func (m *Manager) applyStatus(u *statusUpdate) bool {
	if u.next == "" || u.next == u.job.Status {
		return false
	}
	move, ok := transitions[u.job.Status]
	if !ok {
		return false
	}
	return move(m, u)
}

func terminal(*Manager, *statusUpdate) bool { return false }

func fromPending(m *Manager, u *statusUpdate) bool {
	if u.next != booking.StatusAssigned || !u.translatorChanged || u.translator == nil {
		return false
	}
	u.job.Status = booking.StatusAssigned

	job, customer, translator := u.job, u.customer, *u.translator
	u.after(func(ctx context.Context) error { return m.notifier.SendJobAccepted(ctx, *job, customer) })
	u.after(func(ctx context.Context) error { return m.notifier.SendNewTranslatorAssigned(ctx, *job, translator) })
	u.after(func(ctx context.Context) error { return m.notifier.PushSessionReminders(ctx, *job, customer, translator) })
	return true
}

func fromTimedOut(m *Manager, u *statusUpdate) bool {
	job, customer := u.job, u.customer
	switch u.next {
	case booking.StatusPending:
		expires := m.cal.WillExpireAt(job.Due, u.now)
		job.Status = booking.StatusPending
		job.CreatedAt = u.now
		job.WillExpireAt = &expires
		job.EmailSent = false
		job.EmailSentVirpal = false

		u.after(func(ctx context.Context) error { return m.notifier.SendReopened(ctx, *job, customer) })
		u.after(func(ctx context.Context) error {
			view := booking.NewView(*job, customer.Meta.CustomerType, m.cal.Location())
			return m.notifier.SendNotificationTranslator(ctx, *job, view, 0)
		})
		return true
	case booking.StatusAssigned:
		// Only together with a new translator, so the job is never assigned
		// without a holder.
		if !u.translatorChanged {
			return false
		}
		job.Status = booking.StatusAssigned
		u.after(func(ctx context.Context) error { return m.notifier.SendJobAccepted(ctx, *job, customer) })
		return true
	default:
		return false
	}
}

// toTimedOut is the admin override out of completed and withdrawafter24.
func toTimedOut(_ *Manager, u *statusUpdate) bool {
	if u.next != booking.StatusTimedOut {
		return false
	}
	u.job.Status = booking.StatusTimedOut
	if u.adminComment != "" {
		u.job.AdminComments = u.adminComment
	}
	return true
}

func fromAssigned(m *Manager, u *statusUpdate) bool {
	switch u.next {
	case booking.StatusWithdrawBefore24, booking.StatusWithdrawAfter24:
	case booking.StatusTimedOut:
		if u.adminComment != "" {
			u.job.AdminComments = u.adminComment
		}
	default:
		return false
	}
	u.job.Status = u.next

	if u.next.Withdrawn() {
		job, customer, translator := u.job, u.customer, u.translator
		u.after(func(ctx context.Context) error { return m.notifier.SendWithdrawn(ctx, *job, customer, translator) })
	}
	return true
}

func fromStarted(m *Manager, u *statusUpdate) bool {
	if u.next != booking.StatusCompleted || u.sessionTime == "" {
		return false
	}
	end := u.now
	u.job.Status = booking.StatusCompleted
	u.job.EndAt = &end
	u.job.SessionTime = u.sessionTime

	job, customer := u.job, u.customer
	var translator directory.User
	if u.translator != nil {
		translator = *u.translator
	}
	text := sessionText(u.sessionTime)
	u.after(func(ctx context.Context) error {
		return m.notifier.SendSessionEnded(ctx, *job, customer, translator, text, locale.ForTextInvoice)
	})
	return true
}

// sessionText renders an "H:M:S" session time as "HH tim MM min". Anything
// it cannot parse is returned unchanged.
func sessionText(session string) string {
	parts := strings.Split(session, ":")
	if len(parts) < 2 {
		return session
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return session
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return session
	}
	return fmt.Sprintf("%02d tim %02d min", hours, minutes)
}

// elapsedClock renders a duration as unpadded "H:M:S".
func elapsedClock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	mins := int(d%time.Hour) / int(time.Minute)
	secs := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%d:%d:%d", h, mins, secs)
}
