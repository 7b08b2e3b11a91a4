package notify

import (
	"context"
	"errors"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

// PushSessionReminders reminds both parties of an upcoming session. Night
// opt-outs get the push deferred to the next business time.
func (d *Dispatcher) PushSessionReminders(ctx context.Context, job booking.Job, customer, translator directory.User) error {
	language := d.languageName(ctx, job.FromLanguageID)
	due := job.Due.In(d.cal.Location())

	kind := d.printer.Sprintf(locale.ReminderPhone)
	if job.PhysicalOnly() {
		kind = d.printer.Sprintf(locale.ReminderOnSite)
	}
	text := d.printer.Sprintf(locale.PushSessionReminder,
		language, kind, due.Format("15:04"), due.Format("2006-01-02"), job.Duration, jobNumber(job))
	data := jobNotice{NotificationType: TypeSessionReminder, JobID: job.ID}

	return errors.Join(
		d.pushTo(ctx, customer, job.ID, data, text),
		d.pushTo(ctx, translator, job.ID, data, text),
	)
}

// PushJobAccepted tells the customer their booking has a translator.
func (d *Dispatcher) PushJobAccepted(ctx context.Context, job booking.Job, customer directory.User) error {
	language := d.languageName(ctx, job.FromLanguageID)
	text := d.printer.Sprintf(locale.PushJobAccepted, language, job.Duration, d.dueText(job))
	return d.pushTo(ctx, customer, job.ID, jobNotice{NotificationType: TypeJobAccepted, JobID: job.ID}, text)
}

// PushCustomerCancelled tells the translator the customer withdrew.
func (d *Dispatcher) PushCustomerCancelled(ctx context.Context, job booking.Job, translator directory.User) error {
	language := d.languageName(ctx, job.FromLanguageID)
	text := d.printer.Sprintf(locale.PushCustomerCanceled, language, job.Duration, d.dueText(job))
	return d.pushTo(ctx, translator, job.ID, jobNotice{NotificationType: TypeJobCancelled, JobID: job.ID}, text)
}

// PushTranslatorCancelled tells the customer their translator withdrew and a
// replacement is being sought.
func (d *Dispatcher) PushTranslatorCancelled(ctx context.Context, job booking.Job, customer directory.User) error {
	language := d.languageName(ctx, job.FromLanguageID)
	text := d.printer.Sprintf(locale.PushTranslatorLeft, language, job.Duration, d.dueText(job))
	return d.pushTo(ctx, customer, job.ID, jobNotice{NotificationType: TypeJobCancelled, JobID: job.ID}, text)
}

func (d *Dispatcher) dueText(job booking.Job) string {
	return job.Due.In(d.cal.Location()).Format(booking.DueLayout)
}
