// Package notify targets translators and customers and hands messages to the
// mail, push and SMS gateways. Delivery is best effort: callers decide whether
// a failure matters.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/message"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

const (
	TypeSuitableJob     = "suitable_job"
	TypeJobAccepted     = "job_accepted"
	TypeJobCancelled    = "job_cancelled"
	TypeSessionReminder = "session_start_remind"

	soundNormal    = "normal_booking"
	soundEmergency = "emergency_booking"

	defaultConcurrency = 8
)

// Directory is the user lookup surface the dispatcher needs.
type Directory interface {
	ActiveTranslators(ctx context.Context) ([]directory.User, error)
	UserByID(ctx context.Context, id int64) (directory.User, error)
	LanguageName(ctx context.Context, langID int64) (string, error)
}

// Matcher answers eligibility questions for targeting.
type Matcher interface {
	PotentialTranslators(ctx context.Context, job booking.Job) ([]directory.User, error)
	PotentialJobIDs(ctx context.Context, translator directory.User) ([]int64, error)
}

// JobReader loads jobs and their pinned translators.
type JobReader interface {
	Get(ctx context.Context, id int64) (booking.Job, error)
	ActiveAssignees(ctx context.Context, jobIDs []int64) (map[int64]int64, error)
}

// Calendar provides the night-time rule and the deferred send time.
type Calendar interface {
	IsNightTime(t time.Time) bool
	NextBusinessTimeString(t time.Time) string
	Location() *time.Location
}

type Config struct {
	PushAppID   string
	PushTitle   string
	SMSFrom     string
	Locale      string
	Concurrency int
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Directory Directory
	Matcher   Matcher
	Jobs      JobReader
	Mailer    Mailer
	Push      PushGateway
	SMS       SmsGateway
	Calendar  Calendar
	Logger    *slog.Logger
}

type Dispatcher struct {
	cfg     Config
	dir     Directory
	match   Matcher
	jobs    JobReader
	mailer  Mailer
	push    PushGateway
	sms     SmsGateway
	cal     Calendar
	logger  *slog.Logger
	printer *message.Printer
	now     func() time.Time
}

func NewDispatcher(cfg Config, deps Deps) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:     cfg,
		dir:     deps.Directory,
		match:   deps.Matcher,
		jobs:    deps.Jobs,
		mailer:  deps.Mailer,
		push:    deps.Push,
		sms:     deps.SMS,
		cal:     deps.Calendar,
		logger:  logger.With(slog.String("component", "notify")),
		printer: locale.Printer(cfg.Locale),
		now:     time.Now,
	}
}

// WithClock overrides the time source, mainly for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

// jobPayload is the data block of a suitable-job push.
type jobPayload struct {
	booking.View
	Language         string `json:"language"`
	NotificationType string `json:"notification_type"`
}

// jobNotice is the data block of every other job push.
type jobNotice struct {
	NotificationType string `json:"notification_type"`
	JobID            int64  `json:"job_id"`
}

// SendNotificationTranslator pushes a new job to every translator who can take
// it. Translators who opted out of night pushes get theirs deferred to the
// next business time.
func (d *Dispatcher) SendNotificationTranslator(ctx context.Context, job booking.Job, view booking.View, excludeUserID int64) error {
	users, err := d.dir.ActiveTranslators(ctx)
	if err != nil {
		return fmt.Errorf("notify: list translators: %w", err)
	}
	pinned, err := d.jobs.ActiveAssignees(ctx, []int64{job.ID})
	if err != nil {
		return fmt.Errorf("notify: load assignee for job %d: %w", job.ID, err)
	}
	holder, isPinned := pinned[job.ID]

	candidates := make([]directory.User, 0, len(users))
	for _, u := range users {
		switch {
		case u.ID == excludeUserID:
		case u.Meta.NotGetNotification:
		case job.Immediate && u.Meta.NotGetEmergency:
		case isPinned && u.ID != holder:
		default:
			candidates = append(candidates, u)
		}
	}

	eligible, err := d.eligible(ctx, candidates, job.ID)
	if err != nil {
		return err
	}

	night := d.cal.IsNightTime(d.now())
	var immediate, delayed []directory.User
	for _, u := range eligible {
		if night && u.Meta.NotGetNighttime {
			delayed = append(delayed, u)
			continue
		}
		immediate = append(immediate, u)
	}

	language := d.languageName(ctx, job.FromLanguageID)
	text := d.printer.Sprintf(locale.PushNewBooking, language, job.Duration, view.Due)
	sound := soundNormal
	if job.Immediate {
		text = d.printer.Sprintf(locale.PushNewEmergency, language, job.Duration)
		sound = soundEmergency
	}
	data := jobPayload{View: view, Language: language, NotificationType: TypeSuitableJob}

	d.logger.Info("dispatching job to translators",
		slog.Int64("job_id", job.ID),
		slog.Int("immediate", len(immediate)),
		slog.Int("delayed", len(delayed)),
	)
	return errors.Join(
		d.sendPush(ctx, immediate, job.ID, data, text, sound, false),
		d.sendPush(ctx, delayed, job.ID, data, text, sound, true),
	)
}

// SendAdminCancelNotification re-broadcasts a job after an admin returned it
// to the pool.
func (d *Dispatcher) SendAdminCancelNotification(ctx context.Context, jobID int64) error {
	job, err := d.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("notify: load job %d: %w", jobID, err)
	}
	owner, err := d.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		return fmt.Errorf("notify: load owner of job %d: %w", jobID, err)
	}
	view := booking.NewView(job, owner.Meta.CustomerType, d.cal.Location())
	if view.CustomerTown == "" {
		view.CustomerTown = owner.Meta.City
	}
	return d.SendNotificationTranslator(ctx, job, view, 0)
}

// SendSMSNotificationToTranslator texts every potential translator and
// returns how many messages the gateway accepted.
func (d *Dispatcher) SendSMSNotificationToTranslator(ctx context.Context, job booking.Job) (int, error) {
	translators, err := d.match.PotentialTranslators(ctx, job)
	if err != nil {
		return 0, fmt.Errorf("notify: potential translators for job %d: %w", job.ID, err)
	}
	owner, err := d.dir.UserByID(ctx, job.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("notify: load owner of job %d: %w", job.ID, err)
	}

	body := d.smsBody(job, owner)
	sent := 0
	for _, t := range translators {
		if t.Mobile == "" {
			continue
		}
		status, err := d.sms.Send(ctx, d.cfg.SMSFrom, t.Mobile, body)
		if err != nil {
			d.logger.Warn("sms failed", slog.Int64("job_id", job.ID), slog.Int64("user_id", t.ID), slog.Any("error", err))
			continue
		}
		d.logger.Info("sms sent", slog.Int64("job_id", job.ID), slog.Int64("user_id", t.ID), slog.String("status", status))
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) smsBody(job booking.Job, owner directory.User) string {
	due := job.Due.In(d.cal.Location())
	date, clock := due.Format("02.01.2006"), due.Format("15:04")
	duration := ConvertToHoursMins(job.Duration)
	id := strconv.FormatInt(job.ID, 10)

	if job.PhysicalOnly() {
		city := job.Town
		if city == "" {
			city = owner.Meta.City
		}
		return d.printer.Sprintf(locale.SMSPhysicalJob, date, clock, duration, city, id)
	}
	return d.printer.Sprintf(locale.SMSPhoneJob, date, clock, duration, id)
}

// eligible keeps the candidates whose potential-job set contains jobID. The
// sets are computed concurrently.
func (d *Dispatcher) eligible(ctx context.Context, candidates []directory.User, jobID int64) ([]directory.User, error) {
	keep := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, u := range candidates {
		g.Go(func() error {
			ids, err := d.match.PotentialJobIDs(gctx, u)
			if err != nil {
				return fmt.Errorf("notify: potential jobs for translator %d: %w", u.ID, err)
			}
			keep[i] = slices.Contains(ids, jobID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]directory.User, 0, len(candidates))
	for i, u := range candidates {
		if keep[i] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, users []directory.User, jobID int64, data any, text, sound string, delay bool) error {
	if len(users) == 0 {
		return nil
	}
	if sound == "" {
		sound = "default"
	}
	msg := PushMessage{
		ID:           uuid.NewString(),
		AppID:        d.cfg.PushAppID,
		Filters:      EmailAudience(users),
		Data:         data,
		Headings:     map[string]string{"en": d.cfg.PushTitle},
		Contents:     map[string]string{"en": text},
		AndroidSound: sound,
		IOSSound:     sound,
		BadgeType:    "Increase",
		BadgeCount:   1,
	}
	if sound != "default" {
		msg.IOSSound = sound + ".mp3"
	}
	if delay {
		msg.SendAfter = d.cal.NextBusinessTimeString(d.now())
	}

	resp, err := d.push.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("notify: push job %d: %w", jobID, err)
	}
	d.logger.Info("push sent",
		slog.Int64("job_id", jobID),
		slog.Int("recipients", len(users)),
		slog.Bool("delayed", delay),
		slog.String("response", string(resp)),
	)
	return nil
}

// pushTo sends a job push to a single user, honouring their opt-outs.
func (d *Dispatcher) pushTo(ctx context.Context, user directory.User, jobID int64, data any, text string) error {
	if user.Meta.NotGetNotification {
		return nil
	}
	delay := user.Meta.NotGetNighttime && d.cal.IsNightTime(d.now())
	return d.sendPush(ctx, []directory.User{user}, jobID, data, text, "", delay)
}

func (d *Dispatcher) languageName(ctx context.Context, langID int64) string {
	name, err := d.dir.LanguageName(ctx, langID)
	if err != nil {
		d.logger.Warn("language lookup failed", slog.Int64("language_id", langID), slog.Any("error", err))
		return ""
	}
	return name
}

// ConvertToHoursMins renders a duration in minutes for text messages.
func ConvertToHoursMins(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dmin", minutes)
	case minutes == 60:
		return "1h"
	default:
		return fmt.Sprintf("%02dh %02dmin", minutes/60, minutes%60)
	}
}
