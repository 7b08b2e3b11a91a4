package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

// HistoryPageSize is the number of past bookings per history page.
const HistoryPageSize = 15

var (
	currentStatuses = []booking.Status{booking.StatusPending, booking.StatusAssigned, booking.StatusStarted}
	historyStatuses = []booking.Status{booking.StatusCompleted, booking.StatusWithdrawBefore24, booking.StatusWithdrawAfter24, booking.StatusTimedOut}
)

// UserJobs are a user's current bookings. UserType is empty for users that
// neither book nor serve jobs.
type UserJobs struct {
	User      directory.User
	UserType  directory.Role
	Emergency []booking.Job
	Normal    []booking.Job
}

// JobPage is one page of a user's past bookings.
type JobPage struct {
	User     directory.User
	UserType directory.Role
	Jobs     []booking.Job
	Page     int
	Pages    int
	Total    int
}

// JobDetail is a job with its full tenure history.
type JobDetail struct {
	Job         booking.Job
	Assignments []booking.Assignment
}

// subject resolves whose bookings the viewer asks for. Zero means the viewer;
// only staff may name someone else.
func (m *Manager) subject(ctx context.Context, viewer directory.User, userID int64) (directory.User, error) {
	if userID == 0 || userID == viewer.ID {
		return viewer, nil
	}
	if !viewer.Role.IsStaff() {
		return directory.User{}, m.fail(ErrRole, locale.NotYourBooking)
	}
	user, err := m.dir.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return directory.User{}, m.fail(ErrNotFound, locale.UserMissing, strconv.FormatInt(userID, 10))
		}
		return directory.User{}, fmt.Errorf("lifecycle: load user %d: %w", userID, err)
	}
	return user, nil
}

// ownQuery scopes a JobsQuery to the jobs a customer owns or a translator
// holds. It reports false for any other role.
func ownQuery(user directory.User, tenure booking.Tenure) (booking.JobsQuery, bool) {
	switch user.Role {
	case directory.RoleCustomer:
		return booking.JobsQuery{OwnerID: user.ID}, true
	case directory.RoleTranslator:
		return booking.JobsQuery{TranslatorID: user.ID, Tenure: tenure}, true
	default:
		return booking.JobsQuery{}, false
	}
}

// UserJobs lists the pending, assigned and started bookings of a user, due
// first, split into emergency and normal jobs.
func (m *Manager) UserJobs(ctx context.Context, viewer directory.User, userID int64) (UserJobs, error) {
	user, err := m.subject(ctx, viewer, userID)
	if err != nil {
		return UserJobs{}, err
	}
	out := UserJobs{User: user}
	q, ok := ownQuery(user, booking.TenureActive)
	if !ok {
		return out, nil
	}
	out.UserType = user.Role
	q.Statuses = currentStatuses

	jobs, _, err := m.store.ListJobs(ctx, q)
	if err != nil {
		return UserJobs{}, fmt.Errorf("lifecycle: list jobs of user %d: %w", user.ID, err)
	}
	for _, job := range jobs {
		if job.Immediate {
			out.Emergency = append(out.Emergency, job)
		} else {
			out.Normal = append(out.Normal, job)
		}
	}
	return out, nil
}

// UserHistory pages through the finished bookings of a user, newest first.
// Pages count from 1.
func (m *Manager) UserHistory(ctx context.Context, viewer directory.User, userID int64, page int) (JobPage, error) {
	user, err := m.subject(ctx, viewer, userID)
	if err != nil {
		return JobPage{}, err
	}
	if page < 1 {
		page = 1
	}
	out := JobPage{User: user, Page: page}
	q, ok := ownQuery(user, booking.TenureServed)
	if !ok {
		return out, nil
	}
	out.UserType = user.Role
	q.Statuses = historyStatuses
	q.Newest = true
	q.Limit = HistoryPageSize
	q.Offset = (page - 1) * HistoryPageSize

	jobs, total, err := m.store.ListJobs(ctx, q)
	if err != nil {
		return JobPage{}, fmt.Errorf("lifecycle: list history of user %d: %w", user.ID, err)
	}
	out.Jobs = jobs
	out.Total = total
	out.Pages = (total + HistoryPageSize - 1) / HistoryPageSize
	return out, nil
}

// Job returns one booking with its tenure history.
func (m *Manager) Job(ctx context.Context, viewer directory.User, id int64) (JobDetail, error) {
	job, err := m.loadJob(ctx, id)
	if err != nil {
		return JobDetail{}, err
	}
	history, err := m.store.Assignments(ctx, job.ID)
	if err != nil {
		return JobDetail{}, fmt.Errorf("lifecycle: load assignments: %w", err)
	}
	if !m.canView(viewer, job, history) {
		return JobDetail{}, m.fail(ErrRole, locale.NotYourBooking)
	}
	return JobDetail{Job: job, Assignments: history}, nil
}

func (m *Manager) canView(viewer directory.User, job booking.Job, history []booking.Assignment) bool {
	switch {
	case viewer.Role.IsStaff(), viewer.ID == job.OwnerID:
		return true
	case viewer.Role != directory.RoleTranslator:
		return false
	case job.Status == booking.StatusPending:
		return true
	}
	for _, a := range history {
		if a.TranslatorID == viewer.ID {
			return true
		}
	}
	return false
}
