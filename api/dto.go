package api

import (
	"time"

	"bookingflow/booking"
	"bookingflow/directory"
)

const dueLayout = "2006-01-02 15:04"

type createJobRequest struct {
	FromLanguageID       int64    `json:"from_language_id"`
	Immediate            bool     `json:"immediate"`
	DueDate              string   `json:"due_date"`
	DueTime              string   `json:"due_time"`
	Duration             int      `json:"duration"`
	JobFor               []string `json:"job_for"`
	CustomerPhoneType    bool     `json:"customer_phone_type"`
	CustomerPhysicalType bool     `json:"customer_physical_type"`
}

type storeEmailRequest struct {
	UserEmail    string `json:"user_email"`
	Reference    string `json:"reference"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
	Town         string `json:"town"`
	// Physical bookings need an address; the customer's profile fills gaps.
	SetAddress bool `json:"set_address"`
}

type updateJobRequest struct {
	Due             string  `json:"due"`
	FromLanguageID  int64   `json:"from_language_id"`
	Status          string  `json:"status"`
	TranslatorID    int64   `json:"translator_id"`
	TranslatorEmail string  `json:"translator_email"`
	AdminComments   *string `json:"admin_comments"`
	Reference       *string `json:"reference"`
	SessionTime     string  `json:"session_time"`
}

type distanceRequest struct {
	Distance        string `json:"distance"`
	Time            string `json:"time"`
	SessionTime     string `json:"session_time"`
	AdminComment    string `json:"admincomment"`
	Flagged         bool   `json:"flagged"`
	ManuallyHandled bool   `json:"manually_handled"`
	ByAdmin         bool   `json:"by_admin"`
}

type jobResponse struct {
	ID                   int64   `json:"id"`
	OwnerID              int64   `json:"user_id"`
	FromLanguageID       int64   `json:"from_language_id"`
	Status               string  `json:"status"`
	Immediate            bool    `json:"immediate"`
	Due                  string  `json:"due"`
	Duration             int     `json:"duration"`
	Gender               string  `json:"gender,omitempty"`
	Certified            string  `json:"certified,omitempty"`
	JobType              string  `json:"job_type,omitempty"`
	CustomerPhoneType    bool    `json:"customer_phone_type"`
	CustomerPhysicalType bool    `json:"customer_physical_type"`
	Town                 string  `json:"town,omitempty"`
	Reference            string  `json:"reference,omitempty"`
	AdminComments        string  `json:"admin_comments,omitempty"`
	SessionTime          string  `json:"session_time,omitempty"`
	WillExpireAt         *string `json:"will_expire_at,omitempty"`
	EndAt                *string `json:"end_at,omitempty"`
}

func newJobResponse(job booking.Job, loc *time.Location) jobResponse {
	return jobResponse{
		ID:                   job.ID,
		OwnerID:              job.OwnerID,
		FromLanguageID:       job.FromLanguageID,
		Status:               string(job.Status),
		Immediate:            job.Immediate,
		Due:                  job.Due.In(loc).Format(booking.DueLayout),
		Duration:             job.Duration,
		Gender:               string(job.Gender),
		Certified:            string(job.Certification),
		JobType:              string(job.JobType),
		CustomerPhoneType:    job.CustomerPhoneType,
		CustomerPhysicalType: job.CustomerPhysicalType,
		Town:                 job.Town,
		Reference:            job.Reference,
		AdminComments:        job.AdminComments,
		SessionTime:          job.SessionTime,
		WillExpireAt:         formatOptional(job.WillExpireAt, loc),
		EndAt:                formatOptional(job.EndAt, loc),
	}
}

func newJobResponses(jobs []booking.Job, loc *time.Location) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobResponse(j, loc))
	}
	return out
}

func formatOptional(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(booking.DueLayout)
	return &s
}

type assignmentResponse struct {
	ID           int64   `json:"id"`
	TranslatorID int64   `json:"translator_id"`
	CreatedAt    string  `json:"created_at"`
	CancelAt     *string `json:"cancel_at,omitempty"`
	CompletedAt  *string `json:"completed_at,omitempty"`
	CompletedBy  *int64  `json:"completed_by,omitempty"`
}

func newAssignmentResponses(history []booking.Assignment, loc *time.Location) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(history))
	for _, a := range history {
		out = append(out, assignmentResponse{
			ID:           a.ID,
			TranslatorID: a.TranslatorID,
			CreatedAt:    a.CreatedAt.In(loc).Format(booking.DueLayout),
			CancelAt:     formatOptional(a.CancelAt, loc),
			CompletedAt:  formatOptional(a.CompletedAt, loc),
			CompletedBy:  a.CompletedBy,
		})
	}
	return out
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func newUserResponse(u directory.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}
