// Package lifecycle moves bookings through their states. It owns the rules for
// who may do what and when, commits each change with its audit entry, and
// then hands notifications to the dispatcher on a best-effort basis.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/text/message"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/events"
	"bookingflow/locale"
)

const (
	defaultImmediateLead = 5 * time.Minute
	defaultCancelWindow  = 24 * time.Hour
	dueInputLayout       = "2006-01-02 15:04"
)

// Requested interpreter categories accepted by Create.
const (
	CategoryMale            = "male"
	CategoryFemale          = "female"
	CategoryNormal          = "normal"
	CategoryCertified       = "certified"
	CategoryCertifiedLaw    = "certified_in_law"
	CategoryCertifiedHealth = "certified_in_health"
)

// JobStore persists jobs and their assignment history.
type JobStore interface {
	Create(ctx context.Context, job booking.Job) (booking.Job, error)
	Get(ctx context.Context, id int64) (booking.Job, error)
	Assignments(ctx context.Context, jobID int64) ([]booking.Assignment, error)
	Save(ctx context.Context, change booking.Change) error
	Accept(ctx context.Context, jobID, translatorID int64, at time.Time) (booking.Assignment, error)
	Reopen(ctx context.Context, params booking.ReopenParams) (int64, error)
	TranslatorBookedAt(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error)
	UpdateDistance(ctx context.Context, jobID int64, distance, travelTime string) error
	ListJobs(ctx context.Context, q booking.JobsQuery) ([]booking.Job, int, error)
}

type Directory interface {
	UserByID(ctx context.Context, id int64) (directory.User, error)
	UserByEmail(ctx context.Context, email string) (directory.User, error)
	LanguageName(ctx context.Context, langID int64) (string, error)
}

type Matcher interface {
	PotentialJobs(ctx context.Context, translator directory.User) ([]booking.Job, error)
}

// Notifier is the dispatcher surface the manager drives.
type Notifier interface {
	SendNotificationTranslator(ctx context.Context, job booking.Job, view booking.View, excludeUserID int64) error
	SendSMSNotificationToTranslator(ctx context.Context, job booking.Job) (int, error)
	SendAdminCancelNotification(ctx context.Context, jobID int64) error

	SendBookingReceived(ctx context.Context, job booking.Job, customer directory.User) error
	SendJobAccepted(ctx context.Context, job booking.Job, customer directory.User) error
	SendNewTranslatorAssigned(ctx context.Context, job booking.Job, translator directory.User) error
	SendTranslatorChanged(ctx context.Context, job booking.Job, customer directory.User, previous *directory.User, current directory.User) error
	SendDateChanged(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User, previousDue time.Time) error
	SendLanguageChanged(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User, previousLanguageID int64) error
	SendReopened(ctx context.Context, job booking.Job, customer directory.User) error
	SendWithdrawn(ctx context.Context, job booking.Job, customer directory.User, translator *directory.User) error
	SendSessionEnded(ctx context.Context, job booking.Job, customer, translator directory.User, sessionTime, customerFraming string) error

	PushSessionReminders(ctx context.Context, job booking.Job, customer, translator directory.User) error
	PushJobAccepted(ctx context.Context, job booking.Job, customer directory.User) error
	PushCustomerCancelled(ctx context.Context, job booking.Job, translator directory.User) error
	PushTranslatorCancelled(ctx context.Context, job booking.Job, customer directory.User) error
}

// Calendar computes expiry and the wall-clock location for input and views.
type Calendar interface {
	WillExpireAt(due, reference time.Time) time.Time
	Location() *time.Location
}

type Config struct {
	ImmediateLead time.Duration
	CancelWindow  time.Duration
	Locale        string
	SupportPhone  string
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store     JobStore
	Directory Directory
	Matcher   Matcher
	Notifier  Notifier
	Bus       events.Bus
	Calendar  Calendar
	Logger    *slog.Logger
}

type Manager struct {
	cfg      Config
	store    JobStore
	dir      Directory
	match    Matcher
	notifier Notifier
	bus      events.Bus
	cal      Calendar
	logger   *slog.Logger
	printer  *message.Printer
	now      func() time.Time
}

func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.ImmediateLead <= 0 {
		cfg.ImmediateLead = defaultImmediateLead
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = defaultCancelWindow
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewLogBus(logger)
	}
	return &Manager{
		cfg:      cfg,
		store:    deps.Store,
		dir:      deps.Directory,
		match:    deps.Matcher,
		notifier: deps.Notifier,
		bus:      bus,
		cal:      deps.Calendar,
		logger:   logger.With(slog.String("component", "lifecycle")),
		printer:  locale.Printer(cfg.Locale),
		now:      time.Now,
	}
}

// WithClock overrides the time source, mainly for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Manager) fail(kind error, key string, args ...any) *Error {
	return &Error{Kind: kind, Message: m.printer.Sprintf(key, args...)}
}

func (m *Manager) loadJob(ctx context.Context, id int64) (booking.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrJobNotFound) {
			return booking.Job{}, m.fail(ErrNotFound, locale.JobMissing, strconv.FormatInt(id, 10))
		}
		return booking.Job{}, fmt.Errorf("lifecycle: load job %d: %w", id, err)
	}
	return job, nil
}

// conflict turns a change that lost a race with another one into a state
// error. Any other error yields nil.
func (m *Manager) conflict(err error) error {
	if errors.Is(err, booking.ErrStatusChanged) || errors.Is(err, booking.ErrAssignmentTaken) || errors.Is(err, booking.ErrNoActiveAssignment) {
		return &Error{Kind: ErrState, Message: m.printer.Sprintf(locale.UpdateConflict), Err: err}
	}
	return nil
}

// notified runs a best-effort side effect and reports whether it succeeded.
func (m *Manager) notified(err error, jobID int64, what string) bool {
	if err == nil {
		return true
	}
	m.logger.Warn("notification failed",
		slog.Int64("job_id", jobID),
		slog.String("notification", what),
		slog.Any("error", err),
	)
	return false
}

func (m *Manager) publish(ctx context.Context, evt events.Event) {
	if err := m.bus.Publish(ctx, evt); err != nil {
		m.logger.Warn("event publish failed",
			slog.String("type", string(evt.Type)),
			slog.Int64("job_id", evt.JobID),
			slog.Any("error", err),
		)
	}
}

// CreateParams is a booking request from a customer.
type CreateParams struct {
	FromLanguageID       int64
	Immediate            bool
	DueDate              string // 2006-01-02
	DueTime              string // 15:04
	Duration             int
	Categories           []string
	CustomerPhoneType    bool
	CustomerPhysicalType bool
	ByAdmin              bool
}

// Create books a new job for the customer.
func (m *Manager) Create(ctx context.Context, customer directory.User, p CreateParams) (booking.Job, error) {
	if customer.Role != directory.RoleCustomer {
		return booking.Job{}, m.fail(ErrRole, locale.CreateWrongRole)
	}
	if p.FromLanguageID == 0 || p.Duration <= 0 {
		return booking.Job{}, m.fail(ErrValidation, locale.FieldRequired)
	}

	now := m.now()
	job := booking.Job{
		OwnerID:              customer.ID,
		FromLanguageID:       p.FromLanguageID,
		Status:               booking.StatusPending,
		Immediate:            p.Immediate,
		Duration:             p.Duration,
		CustomerPhoneType:    p.CustomerPhoneType,
		CustomerPhysicalType: p.CustomerPhysicalType,
		ByAdmin:              p.ByAdmin,
		CreatedAt:            now,
		Gender:               genderFor(p.Categories),
		Certification:        certificationFor(p.Categories),
		JobType:              jobTypeFor(customer.Meta.ConsumerType),
	}

	if p.Immediate {
		job.Due = now.Add(m.cfg.ImmediateLead)
		job.CustomerPhoneType = true
	} else {
		if p.DueDate == "" || p.DueTime == "" || (!p.CustomerPhoneType && !p.CustomerPhysicalType) {
			return booking.Job{}, m.fail(ErrValidation, locale.FieldRequired)
		}
		due, err := time.ParseInLocation(dueInputLayout, p.DueDate+" "+p.DueTime, m.cal.Location())
		if err != nil {
			return booking.Job{}, m.fail(ErrValidation, locale.FieldRequired)
		}
		if !due.After(now) {
			return booking.Job{}, m.fail(ErrPastDue, locale.CreatePastDue)
		}
		job.Due = due
	}
	expires := m.cal.WillExpireAt(job.Due, now)
	job.WillExpireAt = &expires

	created, err := m.store.Create(ctx, job)
	if err != nil {
		return booking.Job{}, &Error{Kind: ErrFailed, Message: m.printer.Sprintf(locale.CreateFailed, err.Error()), Err: err}
	}
	m.logger.Info("job created",
		slog.Int64("job_id", created.ID),
		slog.Int64("customer_id", customer.ID),
		slog.Bool("immediate", created.Immediate),
		slog.Time("due", created.Due),
	)
	return created, nil
}

// genderFor picks the requested translator gender. Male wins when both are
// requested.
func genderFor(categories []string) booking.Gender {
	switch {
	case slices.Contains(categories, CategoryMale):
		return booking.GenderMale
	case slices.Contains(categories, CategoryFemale):
		return booking.GenderFemale
	default:
		return booking.GenderAny
	}
}

func certificationFor(categories []string) booking.Certification {
	has := func(c string) bool { return slices.Contains(categories, c) }
	anyCertified := has(CategoryCertified) || has(CategoryCertifiedLaw) || has(CategoryCertifiedHealth)
	switch {
	case has(CategoryNormal) && anyCertified:
		return booking.CertificationBoth
	case has(CategoryNormal):
		return booking.CertificationNormal
	case has(CategoryCertified):
		return booking.CertificationYes
	case has(CategoryCertifiedLaw):
		return booking.CertificationLaw
	case has(CategoryCertifiedHealth):
		return booking.CertificationHealth
	default:
		return booking.CertificationNone
	}
}

func jobTypeFor(consumerType string) booking.JobType {
	switch consumerType {
	case directory.ConsumerRWS, "rws":
		return booking.JobTypeRWS
	case directory.ConsumerNGO:
		return booking.JobTypeUnpaid
	case directory.ConsumerPaid:
		return booking.JobTypePaid
	default:
		return booking.JobTypeNone
	}
}

// StoreEmailParams completes a booking with its contact details. Empty
// address fields fall back to the customer's profile when SetAddress is set.
type StoreEmailParams struct {
	JobID        int64
	UserEmail    string
	Reference    string
	SetAddress   bool
	Address      string
	Instructions string
	Town         string
}

// StoreJobEmail records the contact details of a new booking, confirms it to
// the customer and announces it. Only the owner or staff may do so.
func (m *Manager) StoreJobEmail(ctx context.Context, p StoreEmailParams, actor directory.User) (booking.Job, error) {
	job, err := m.loadJob(ctx, p.JobID)
	if err != nil {
		return booking.Job{}, err
	}
	if actor.ID != job.OwnerID && !actor.Role.IsStaff() {
		return booking.Job{}, m.fail(ErrRole, locale.NotYourBooking)
	}
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		return booking.Job{}, fmt.Errorf("lifecycle: load customer of job %d: %w", job.ID, err)
	}

	before := job
	job.UserEmail = p.UserEmail
	job.Reference = p.Reference
	if p.SetAddress {
		job.Address = firstNonEmpty(p.Address, customer.Meta.Address)
		job.Instructions = firstNonEmpty(p.Instructions, customer.Meta.Instructions)
		job.Town = firstNonEmpty(p.Town, customer.Meta.City)
	}

	now := m.now()
	if err := m.store.Save(ctx, booking.Change{Job: job, Before: &before, At: now}); err != nil {
		return booking.Job{}, fmt.Errorf("lifecycle: store job email: %w", err)
	}

	if err := m.notifier.SendBookingReceived(ctx, job, customer); err != nil {
		return booking.Job{}, &Error{Kind: ErrFailed, Message: m.printer.Sprintf(locale.StoreEmailFailed, err.Error()), Err: err}
	}

	evt := events.New(events.JobCreated, job.ID, now)
	evt.UserID = customer.ID
	evt.Payload = map[string]any{"customer_type": customer.Meta.CustomerType}
	m.publish(ctx, evt)
	return job, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AcceptResult is returned by a successful accept.
type AcceptResult struct {
	Job           booking.Job
	Message       string
	Notified      bool
	PotentialJobs []booking.Job
}

// Accept gives the job to the translator if nobody holds it yet.
func (m *Manager) Accept(ctx context.Context, jobID int64, translator directory.User) (AcceptResult, error) {
	job, err := m.acceptGuarded(ctx, jobID, translator,
		func(booking.Job) *Error { return m.fail(ErrConflict, locale.AcceptBooked) },
		func(booking.Job) *Error { return m.fail(ErrState, locale.AcceptFailed) },
	)
	if err != nil {
		return AcceptResult{}, err
	}

	result := AcceptResult{Job: job, Notified: true}
	if customer, err := m.dir.UserByID(ctx, job.OwnerID); err != nil {
		result.Notified = m.notified(err, job.ID, "job accepted mail")
	} else {
		result.Notified = m.notified(m.notifier.SendJobAccepted(ctx, job, customer), job.ID, "job accepted mail")
	}

	jobs, err := m.match.PotentialJobs(ctx, translator)
	if err != nil {
		m.logger.Warn("refresh potential jobs failed", slog.Int64("translator_id", translator.ID), slog.Any("error", err))
	}
	result.PotentialJobs = jobs
	return result, nil
}

// AcceptWithID is Accept with user-facing messages that name the job, and a
// push to the customer on success.
func (m *Manager) AcceptWithID(ctx context.Context, jobID int64, translator directory.User) (AcceptResult, error) {
	job, err := m.acceptGuarded(ctx, jobID, translator,
		func(job booking.Job) *Error {
			return m.fail(ErrConflict, locale.AcceptBookedAt, m.dueText(job))
		},
		func(job booking.Job) *Error {
			return m.fail(ErrState, locale.AcceptTaken, m.languageName(ctx, job.FromLanguageID), job.Duration, m.dueText(job))
		},
	)
	if err != nil {
		return AcceptResult{}, err
	}

	result := AcceptResult{
		Job:     job,
		Message: m.printer.Sprintf(locale.AcceptConfirmed, m.languageName(ctx, job.FromLanguageID), job.Duration, m.dueText(job)),
	}
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		m.notified(err, job.ID, "load customer")
		return result, nil
	}
	mailed := m.notified(m.notifier.SendJobAccepted(ctx, job, customer), job.ID, "job accepted mail")
	pushed := m.notified(m.notifier.PushJobAccepted(ctx, job, customer), job.ID, "job accepted push")
	result.Notified = mailed && pushed
	return result, nil
}

// acceptGuarded runs the accept guards and the insert-if-absent. booked and
// lost build the failure for a double booking and for a job that is no longer
// available.
func (m *Manager) acceptGuarded(ctx context.Context, jobID int64, translator directory.User, booked, lost func(booking.Job) *Error) (booking.Job, error) {
	if translator.Role != directory.RoleTranslator {
		return booking.Job{}, m.fail(ErrRole, locale.AcceptFailed)
	}
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return booking.Job{}, err
	}

	clash, err := m.store.TranslatorBookedAt(ctx, translator.ID, job.Due, job.ID)
	if err != nil {
		return booking.Job{}, fmt.Errorf("lifecycle: check translator schedule: %w", err)
	}
	if clash {
		return booking.Job{}, booked(job)
	}
	if job.Status != booking.StatusPending {
		return booking.Job{}, lost(job)
	}

	if _, err := m.store.Accept(ctx, job.ID, translator.ID, m.now()); err != nil {
		if errors.Is(err, booking.ErrAssignmentTaken) || errors.Is(err, booking.ErrNotPending) {
			m.logger.Info("accept lost race", slog.Int64("job_id", job.ID), slog.Int64("translator_id", translator.ID))
			return booking.Job{}, lost(job)
		}
		return booking.Job{}, fmt.Errorf("lifecycle: accept job %d: %w", job.ID, err)
	}
	job.Status = booking.StatusAssigned
	m.logger.Info("job accepted", slog.Int64("job_id", job.ID), slog.Int64("translator_id", translator.ID))
	return job, nil
}

// CancelResult reports the outcome of a cancel.
type CancelResult struct {
	Job      booking.Job
	Notified bool
}

// Cancel withdraws a booking. Customers may always cancel; the translator
// holding the job may only hand it back while the due time is more than the
// cancel window away.
func (m *Manager) Cancel(ctx context.Context, jobID int64, actor directory.User) (CancelResult, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return CancelResult{}, err
	}
	history, err := m.store.Assignments(ctx, job.ID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("lifecycle: load assignments: %w", err)
	}
	current, held := booking.Current(history)

	switch {
	case actor.Role == directory.RoleCustomer && actor.ID == job.OwnerID:
		return m.customerCancel(ctx, job, actor, current, held)
	case actor.Role == directory.RoleTranslator && held && current.TranslatorID == actor.ID:
		return m.translatorCancel(ctx, job, actor)
	default:
		return CancelResult{}, m.fail(ErrRole, locale.CancelNotAllowed)
	}
}

func (m *Manager) customerCancel(ctx context.Context, job booking.Job, customer directory.User, current booking.Assignment, held bool) (CancelResult, error) {
	now := m.now()
	before := job
	previous := job.Status
	job.WithdrawAt = &now
	job.Status = booking.StatusWithdrawAfter24
	if job.Due.Sub(now) >= m.cfg.CancelWindow {
		job.Status = booking.StatusWithdrawBefore24
	}

	actorID := customer.ID
	if err := m.store.Save(ctx, booking.Change{
		Job:    job,
		Before: &before,
		At:     now,
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			ActorID: &actorID,
			Action:  "withdrawn",
			Changes: []map[string]any{{"old_status": previous, "new_status": job.Status}},
		},
	}); err != nil {
		if c := m.conflict(err); c != nil {
			return CancelResult{}, c
		}
		return CancelResult{}, fmt.Errorf("lifecycle: withdraw job %d: %w", job.ID, err)
	}

	evt := events.New(events.JobCanceled, job.ID, now)
	evt.UserID = customer.ID
	evt.Payload = map[string]any{"status": job.Status}
	m.publish(ctx, evt)

	result := CancelResult{Job: job, Notified: true}
	if held {
		translator, err := m.dir.UserByID(ctx, current.TranslatorID)
		if err == nil {
			err = m.notifier.PushCustomerCancelled(ctx, job, translator)
		}
		result.Notified = m.notified(err, job.ID, "customer cancelled push")
	}
	return result, nil
}

func (m *Manager) translatorCancel(ctx context.Context, job booking.Job, translator directory.User) (CancelResult, error) {
	now := m.now()
	if job.Due.Sub(now) <= m.cfg.CancelWindow {
		return CancelResult{}, m.fail(ErrCancelWindow, locale.CancelTooLate, m.cfg.SupportPhone)
	}

	before := job
	previous := job.Status
	expires := m.cal.WillExpireAt(job.Due, now)
	job.Status = booking.StatusPending
	job.CreatedAt = now
	job.WillExpireAt = &expires

	actorID := translator.ID
	if err := m.store.Save(ctx, booking.Change{
		Job:     job,
		Before:  &before,
		At:      now,
		Release: true,
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			ActorID: &actorID,
			Action:  "translator_withdrew",
			Changes: []map[string]any{{"old_status": previous, "new_status": job.Status}},
		},
	}); err != nil {
		if c := m.conflict(err); c != nil {
			return CancelResult{}, c
		}
		return CancelResult{}, fmt.Errorf("lifecycle: release job %d: %w", job.ID, err)
	}

	result := CancelResult{Job: job, Notified: true}
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		result.Notified = m.notified(err, job.ID, "load customer")
		return result, nil
	}
	pushed := m.notified(m.notifier.PushTranslatorCancelled(ctx, job, customer), job.ID, "translator cancelled push")
	view := booking.NewView(job, customer.Meta.CustomerType, m.cal.Location())
	broadcast := m.notified(m.notifier.SendNotificationTranslator(ctx, job, view, translator.ID), job.ID, "job broadcast")
	result.Notified = pushed && broadcast
	return result, nil
}

// EndResult reports the outcome of ending a session.
type EndResult struct {
	Job      booking.Job
	Changed  bool
	Notified bool
}

// EndSession completes a started job. Any other status is left untouched and
// reported as success. The owner, the translator holding the job and staff
// may end a session.
func (m *Manager) EndSession(ctx context.Context, jobID int64, requester directory.User) (EndResult, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return EndResult{}, err
	}
	history, err := m.store.Assignments(ctx, job.ID)
	if err != nil {
		return EndResult{}, fmt.Errorf("lifecycle: load assignments: %w", err)
	}
	current, held := booking.Current(history)
	holder := held && current.TranslatorID == requester.ID
	if requester.ID != job.OwnerID && !holder && !requester.Role.IsStaff() {
		return EndResult{}, m.fail(ErrRole, locale.NotYourBooking)
	}
	if job.Status != booking.StatusStarted {
		return EndResult{Job: job, Notified: true}, nil
	}
	requesterID := requester.ID

	// Elapsed time runs from the scheduled due, not from when the call
	// actually started.
	now := m.now()
	before := job
	job.EndAt = &now
	job.Status = booking.StatusCompleted
	job.SessionTime = elapsedClock(now.Sub(job.Due))

	change := booking.Change{
		Job:    job,
		Before: &before,
		At:     now,
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			ActorID: &requesterID,
			Action:  "session_ended",
			Changes: []map[string]any{{"old_status": booking.StatusStarted, "new_status": job.Status, "session_time": job.SessionTime}},
		},
	}
	if held && current.CompletedAt == nil {
		change.Complete = &booking.Completion{By: requesterID}
	}
	if err := m.store.Save(ctx, change); err != nil {
		if c := m.conflict(err); c != nil {
			return EndResult{}, c
		}
		return EndResult{}, fmt.Errorf("lifecycle: end session of job %d: %w", job.ID, err)
	}

	result := EndResult{Job: job, Changed: true, Notified: true}
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		result.Notified = m.notified(err, job.ID, "load customer")
		return result, nil
	}
	var translator directory.User
	if held {
		if translator, err = m.dir.UserByID(ctx, current.TranslatorID); err != nil {
			result.Notified = m.notified(err, job.ID, "load translator")
		}
	}

	framing := locale.ForTextPayout
	if requesterID == job.OwnerID {
		framing = locale.ForTextInvoice
	}
	if !m.notified(m.notifier.SendSessionEnded(ctx, job, customer, translator, sessionText(job.SessionTime), framing), job.ID, "session ended mail") {
		result.Notified = false
	}

	other := job.OwnerID
	if requesterID == job.OwnerID {
		other = current.TranslatorID
	}
	evt := events.New(events.SessionEnded, job.ID, now)
	evt.UserID = other
	evt.Payload = map[string]any{"session_time": job.SessionTime, "requester_id": requesterID}
	m.publish(ctx, evt)
	return result, nil
}

// CustomerNoShow closes a job the customer never showed up for. The
// translator's tenure is completed in their own name.
func (m *Manager) CustomerNoShow(ctx context.Context, jobID int64) (booking.Job, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return booking.Job{}, err
	}
	history, err := m.store.Assignments(ctx, job.ID)
	if err != nil {
		return booking.Job{}, fmt.Errorf("lifecycle: load assignments: %w", err)
	}
	current, held := booking.Current(history)

	now := m.now()
	before := job
	previous := job.Status
	job.EndAt = &now
	job.Status = booking.StatusNotCarriedOutCustomer

	change := booking.Change{
		Job:    job,
		Before: &before,
		At:     now,
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			Action:  "customer_no_show",
			Changes: []map[string]any{{"old_status": previous, "new_status": job.Status}},
		},
	}
	if held && current.CompletedAt == nil {
		change.Complete = &booking.Completion{By: current.TranslatorID}
	}
	if err := m.store.Save(ctx, change); err != nil {
		if c := m.conflict(err); c != nil {
			return booking.Job{}, c
		}
		return booking.Job{}, fmt.Errorf("lifecycle: mark no-show on job %d: %w", job.ID, err)
	}
	m.logger.Info("customer no-show recorded", slog.Int64("job_id", job.ID))
	return job, nil
}

// ReopenResult names the pending job produced by a reopen.
type ReopenResult struct {
	JobID    int64
	Cloned   bool
	Notified bool
}

// Reopen puts a job back in the pool. A timed out job is cloned into a new
// row; any other job is reset in place. Active tenures of the original job
// are closed either way.
func (m *Manager) Reopen(ctx context.Context, jobID, requesterID int64) (ReopenResult, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return ReopenResult{}, err
	}

	now := m.now()
	expires := m.cal.WillExpireAt(job.Due, now)
	params := booking.ReopenParams{
		JobID:        job.ID,
		RequesterID:  requesterID,
		At:           now,
		WillExpireAt: expires,
	}
	if job.Status == booking.StatusTimedOut {
		clone := job
		clone.ID = 0
		clone.Status = booking.StatusPending
		clone.CreatedAt = now
		clone.WillExpireAt = &expires
		clone.WithdrawAt = nil
		clone.EndAt = nil
		clone.SessionTime = ""
		clone.EmailSent = false
		clone.EmailSentVirpal = false
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%d", job.ID)
		params.Clone = &clone
	}

	pendingID, err := m.store.Reopen(ctx, params)
	if err != nil {
		if errors.Is(err, booking.ErrJobNotFound) {
			return ReopenResult{}, m.fail(ErrNotFound, locale.JobMissing, strconv.FormatInt(jobID, 10))
		}
		return ReopenResult{}, fmt.Errorf("lifecycle: reopen job %d: %w", job.ID, err)
	}
	m.logger.Info("job reopened", slog.Int64("job_id", job.ID), slog.Int64("pending_job_id", pendingID))

	notified := m.notified(m.notifier.SendAdminCancelNotification(ctx, pendingID), pendingID, "reopen broadcast")
	return ReopenResult{JobID: pendingID, Cloned: params.Clone != nil, Notified: notified}, nil
}

// ResendNotifications pushes the job to every eligible translator again.
func (m *Manager) ResendNotifications(ctx context.Context, jobID int64) (bool, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	customer, err := m.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: load customer of job %d: %w", job.ID, err)
	}
	view := booking.NewView(job, customer.Meta.CustomerType, m.cal.Location())
	return m.notified(m.notifier.SendNotificationTranslator(ctx, job, view, 0), job.ID, "job broadcast"), nil
}

// ResendSMSNotifications texts every potential translator again and returns
// how many messages went out.
func (m *Manager) ResendSMSNotifications(ctx context.Context, jobID int64) (int, error) {
	job, err := m.loadJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	sent, err := m.notifier.SendSMSNotificationToTranslator(ctx, job)
	if err != nil {
		return 0, &Error{Kind: ErrFailed, Message: m.printer.Sprintf(locale.SMSResendFailed, err.Error()), Err: err}
	}
	return sent, nil
}

// DistanceFeed carries travel details and admin flags reported after a
// session.
type DistanceFeed struct {
	JobID           int64
	Distance        string
	Time            string
	SessionTime     string
	AdminComment    string
	Flagged         bool
	ManuallyHandled bool
	ByAdmin         bool
}

// UpdateDistanceFeed stores the distance record and the admin flags of a job.
func (m *Manager) UpdateDistanceFeed(ctx context.Context, feed DistanceFeed, editor directory.User) error {
	if !editor.Role.IsStaff() {
		return m.fail(ErrRole, locale.CancelNotAllowed)
	}
	if feed.Flagged && feed.AdminComment == "" {
		return m.fail(ErrValidation, locale.FlaggedNeedsNote)
	}

	if feed.Distance != "" || feed.Time != "" {
		if err := m.store.UpdateDistance(ctx, feed.JobID, feed.Distance, feed.Time); err != nil {
			if errors.Is(err, booking.ErrJobNotFound) {
				return m.fail(ErrNotFound, locale.JobMissing, strconv.FormatInt(feed.JobID, 10))
			}
			return fmt.Errorf("lifecycle: update distance: %w", err)
		}
	}

	if feed.AdminComment == "" && feed.SessionTime == "" && !feed.Flagged && !feed.ManuallyHandled && !feed.ByAdmin {
		return nil
	}
	job, err := m.loadJob(ctx, feed.JobID)
	if err != nil {
		return err
	}
	before := job
	job.AdminComments = feed.AdminComment
	job.SessionTime = feed.SessionTime
	job.Flagged = feed.Flagged
	job.ManuallyHandled = feed.ManuallyHandled
	job.ByAdmin = feed.ByAdmin

	editorID := editor.ID
	if err := m.store.Save(ctx, booking.Change{
		Job:    job,
		Before: &before,
		At:     m.now(),
		Audit: &booking.AuditEntry{
			JobID:   job.ID,
			ActorID: &editorID,
			Action:  "admin_flags",
			Changes: []map[string]any{{
				"flagged":          feed.Flagged,
				"manually_handled": feed.ManuallyHandled,
				"by_admin":         feed.ByAdmin,
				"session_time":     feed.SessionTime,
			}},
		},
	}); err != nil {
		return fmt.Errorf("lifecycle: update admin flags: %w", err)
	}
	return nil
}

// PotentialJobs is the translator's job board.
func (m *Manager) PotentialJobs(ctx context.Context, translator directory.User) ([]booking.Job, error) {
	if translator.Role != directory.RoleTranslator {
		return nil, m.fail(ErrRole, locale.AcceptFailed)
	}
	jobs, err := m.match.PotentialJobs(ctx, translator)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: potential jobs: %w", err)
	}
	return jobs, nil
}

func (m *Manager) languageName(ctx context.Context, langID int64) string {
	name, err := m.dir.LanguageName(ctx, langID)
	if err != nil {
		m.logger.Warn("language lookup failed", slog.Int64("language_id", langID), slog.Any("error", err))
		return ""
	}
	return name
}

func (m *Manager) dueText(job booking.Job) string {
	return job.Due.In(m.cal.Location()).Format(booking.DueLayout)
}
