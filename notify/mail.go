package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

// Mail template keys.
const (
	TemplateJobCreated          = "emails.job-created"
	TemplateJobAccepted         = "emails.job-accepted"
	TemplateTranslatorNew       = "emails.job-changed-translator-new-translator"
	TemplateTranslatorOld       = "emails.job-changed-translator-old-translator"
	TemplateTranslatorCustomer  = "emails.job-changed-translator-customer"
	TemplateDateChanged         = "emails.job-changed-date"
	TemplateLanguageChanged     = "emails.job-changed-lang"
	TemplateReopened            = "emails.job-change-status-to-customer"
	TemplateWithdrawnCustomer   = "emails.status-changed-from-pending-or-assigned-customer"
	TemplateWithdrawnTranslator = "emails.job-cancel-translator"
	TemplateSessionEnded        = "emails.session-ended"
)

// CustomerAddress is where customer mail for the job goes: the override
// address when one was stored, the account address otherwise.
func CustomerAddress(job booking.Job, customer directory.User) string {
	if job.UserEmail != "" {
		return job.UserEmail
	}
	return customer.Email
}

func (d *Dispatcher) mail(ctx context.Context, to, name, subject, template string, data map[string]any) error {
	if to == "" {
		return nil
	}
	if err := d.mailer.Send(ctx, to, name, subject, template, data); err != nil {
		return fmt.Errorf("notify: mail %s to %s: %w", template, to, err)
	}
	return nil
}

func (d *Dispatcher) mailData(job booking.Job, name string) map[string]any {
	return map[string]any{
		"user": name,
		"job":  booking.NewView(job, "", d.cal.Location()),
	}
}

func jobNumber(job booking.Job) string {
	return strconv.FormatInt(job.ID, 10)
}

// SendBookingReceived confirms a new booking to the customer.
func (d *Dispatcher) SendBookingReceived(ctx context.Context, job booking.Job, customer directory.User) error {
	subject := d.printer.Sprintf(locale.SubjectReceived, jobNumber(job))
	return d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateJobCreated, d.mailData(job, customer.Name))
}

// SendJobAccepted tells the customer a translator took the booking.
func (d *Dispatcher) SendJobAccepted(ctx context.Context, job booking.Job, customer directory.User) error {
	subject := d.printer.Sprintf(locale.SubjectAccepted, jobNumber(job))
	return d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateJobAccepted, d.mailData(job, customer.Name))
}

// SendNewTranslatorAssigned tells a translator an admin gave them the booking.
func (d *Dispatcher) SendNewTranslatorAssigned(ctx context.Context, job booking.Job, translator directory.User) error {
	subject := d.printer.Sprintf(locale.SubjectAccepted, jobNumber(job))
	return d.mail(ctx, translator.Email, translator.Name, subject, TemplateTranslatorNew, d.mailData(job, translator.Name))
}

// SendTranslatorChanged informs the customer and both translators of a
// reassignment. previous is nil when the job had no translator.
func (d *Dispatcher) SendTranslatorChanged(ctx context.Context, job booking.Job, customer directory.User, previous *directory.User, current directory.User) error {
	subject := d.printer.Sprintf(locale.SubjectTranslatorChanged, jobNumber(job))
	errs := []error{
		d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateTranslatorCustomer, d.mailData(job, customer.Name)),
	}
	if previous != nil {
		errs = append(errs, d.mail(ctx, previous.Email, previous.Name, subject, TemplateTranslatorOld, d.mailData(job, previous.Name)))
	}
	errs = append(errs, d.mail(ctx, current.Email, current.Name, subject, TemplateTranslatorNew, d.mailData(job, current.Name)))
	return errors.Join(errs...)
}

// SendDateChanged informs the customer and the assigned translator of a new
// due time.
func (d *Dispatcher) SendDateChanged(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User, previousDue time.Time) error {
	subject := d.printer.Sprintf(locale.SubjectBookingChanged, jobNumber(job))
	oldTime := previousDue.In(d.cal.Location()).Format(booking.DueLayout)

	data := d.mailData(job, customer.Name)
	data["old_time"] = oldTime
	errs := []error{d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateDateChanged, data)}
	if translator != nil {
		data := d.mailData(job, translator.Name)
		data["old_time"] = oldTime
		errs = append(errs, d.mail(ctx, translator.Email, translator.Name, subject, TemplateDateChanged, data))
	}
	return errors.Join(errs...)
}

// SendLanguageChanged informs the customer and the assigned translator of a
// new source language.
func (d *Dispatcher) SendLanguageChanged(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User, previousLanguageID int64) error {
	subject := d.printer.Sprintf(locale.SubjectBookingChanged, jobNumber(job))
	oldLanguage := d.languageName(ctx, previousLanguageID)

	data := d.mailData(job, customer.Name)
	data["old_language"] = oldLanguage
	errs := []error{d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateLanguageChanged, data)}
	if translator != nil {
		data := d.mailData(job, translator.Name)
		data["old_language"] = oldLanguage
		errs = append(errs, d.mail(ctx, translator.Email, translator.Name, subject, TemplateLanguageChanged, data))
	}
	return errors.Join(errs...)
}

// SendReopened tells the customer a timed out booking is open again.
func (d *Dispatcher) SendReopened(ctx context.Context, job booking.Job, customer directory.User) error {
	language := d.languageName(ctx, job.FromLanguageID)
	subject := d.printer.Sprintf(locale.SubjectReopened, language, jobNumber(job))
	return d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateReopened, d.mailData(job, customer.Name))
}

// SendWithdrawn informs the customer and the active translator that the
// booking was withdrawn.
func (d *Dispatcher) SendWithdrawn(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User) error {
	subject := d.printer.Sprintf(locale.SubjectSessionEnded, jobNumber(job))
	errs := []error{
		d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateWithdrawnCustomer, d.mailData(job, customer.Name)),
	}
	if translator != nil {
		errs = append(errs, d.mail(ctx, translator.Email, translator.Name, subject, TemplateWithdrawnTranslator, d.mailData(job, translator.Name)))
	}
	return errors.Join(errs...)
}

// SendSessionEnded mails the session summary, first to the customer with the
// given framing and then to the translator framed as payout.
func (d *Dispatcher) SendSessionEnded(ctx context.Context, job booking.Job, customer, translator directory.User, sessionTime, customerFraming string) error {
	subject := d.printer.Sprintf(locale.SubjectSessionEnded, jobNumber(job))

	data := d.mailData(job, customer.Name)
	data["session_time"] = sessionTime
	data["for_text"] = d.printer.Sprintf(customerFraming)
	customerErr := d.mail(ctx, CustomerAddress(job, customer), customer.Name, subject, TemplateSessionEnded, data)

	data = d.mailData(job, translator.Name)
	data["session_time"] = sessionTime
	data["for_text"] = d.printer.Sprintf(locale.ForTextPayout)
	translatorErr := d.mail(ctx, translator.Email, translator.Name, subject, TemplateSessionEnded, data)

	return errors.Join(customerErr, translatorErr)
}
