package booking

import (
	"reflect"
	"strings"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending               Status = "pending"
	StatusAssigned              Status = "assigned"
	StatusStarted               Status = "started"
	StatusCompleted             Status = "completed"
	StatusTimedOut              Status = "timedout"
	StatusWithdrawBefore24      Status = "withdrawbefore24"
	StatusWithdrawAfter24       Status = "withdrawafter24"
	StatusNotCarriedOutCustomer Status = "not_carried_out_customer"
)

// Statuses lists every status a job row may hold.
var Statuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusStarted,
	StatusCompleted,
	StatusTimedOut,
	StatusWithdrawBefore24,
	StatusWithdrawAfter24,
	StatusNotCarriedOutCustomer,
}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Withdrawn reports whether the status is one of the two withdraw outcomes.
func (s Status) Withdrawn() bool {
	return s == StatusWithdrawBefore24 || s == StatusWithdrawAfter24
}

// Certification is the requested interpreter qualification. The empty value
// means no requirement.
type Certification string

const (
	CertificationNone    Certification = ""
	CertificationNormal  Certification = "normal"
	CertificationYes     Certification = "yes"
	CertificationBoth    Certification = "both"
	CertificationLaw     Certification = "law"
	CertificationNLaw    Certification = "n_law"
	CertificationHealth  Certification = "health"
	CertificationNHealth Certification = "n_health"
)

// Certifications lists every stored certification value, including none.
var Certifications = []Certification{
	CertificationNone,
	CertificationNormal,
	CertificationYes,
	CertificationBoth,
	CertificationLaw,
	CertificationNLaw,
	CertificationHealth,
	CertificationNHealth,
}

// JobType decides which translator population may serve a job.
type JobType string

const (
	JobTypeNone   JobType = ""
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

// Gender is the requested interpreter gender. Empty means any.
type Gender string

const (
	GenderAny    Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Job is one interpreter booking request.
type Job struct {
	ID                   int64
	OwnerID              int64
	FromLanguageID       int64
	Status               Status
	Immediate            bool
	Due                  time.Time
	Duration             int
	Gender               Gender
	Certification        Certification
	JobType              JobType
	CustomerPhoneType    bool
	CustomerPhysicalType bool
	CustomerTown         string
	AdminComments        string
	Flagged              bool
	ManuallyHandled      bool
	ByAdmin              bool
	SessionTime          string
	EndAt                *time.Time
	CreatedAt            time.Time
	WillExpireAt         *time.Time
	WithdrawAt           *time.Time
	UserEmail            string
	Reference            string
	Address              string
	Instructions         string
	Town                 string
	EmailSent            bool
	EmailSentVirpal      bool
}

// MergeJob applies the fields that differ between before and after onto
// current. Fields the caller left alone keep whatever current holds.
func MergeJob(current, before, after Job) Job {
	cur := reflect.ValueOf(&current).Elem()
	b, a := reflect.ValueOf(before), reflect.ValueOf(after)
	for i := 0; i < cur.NumField(); i++ {
		if !reflect.DeepEqual(b.Field(i).Interface(), a.Field(i).Interface()) {
			cur.Field(i).Set(a.Field(i))
		}
	}
	return current
}

// PhysicalOnly reports whether the job can only be served in person.
func (j Job) PhysicalOnly() bool {
	return j.CustomerPhysicalType && !j.CustomerPhoneType
}

// Assignment links one translator to one job for one tenure. Rows are never
// deleted; a tenure ends by stamping CancelAt.
type Assignment struct {
	ID           int64
	JobID        int64
	TranslatorID int64
	CreatedAt    time.Time
	CancelAt     *time.Time
	CompletedAt  *time.Time
	CompletedBy  *int64
}

func (a Assignment) Active() bool {
	return a.CancelAt == nil
}

// Current returns the active tenure from an assignment history, preferring the
// most recently created row when the history is inconsistent.
func Current(history []Assignment) (Assignment, bool) {
	var (
		current Assignment
		found   bool
	)
	for _, a := range history {
		if !a.Active() {
			continue
		}
		if !found || a.ID > current.ID {
			current = a
			found = true
		}
	}
	return current, found
}

// LastCompleted returns the most recent completed tenure, used when no active
// tenure exists.
func LastCompleted(history []Assignment) (Assignment, bool) {
	var (
		last  Assignment
		found bool
	)
	for _, a := range history {
		if a.CompletedAt == nil {
			continue
		}
		if !found || a.ID > last.ID {
			last = a
			found = true
		}
	}
	return last, found
}

// AuditEntry is written in the same transaction as the job mutation it
// describes.
type AuditEntry struct {
	JobID   int64
	ActorID *int64
	Action  string
	Changes []map[string]any
}

// View is the flattened job payload attached to push notifications.
type View struct {
	JobID                int64    `json:"job_id"`
	FromLanguageID       int64    `json:"from_language_id"`
	Immediate            bool     `json:"immediate"`
	Duration             int      `json:"duration"`
	Status               string   `json:"status"`
	Gender               string   `json:"gender,omitempty"`
	Certified            string   `json:"certified,omitempty"`
	Due                  string   `json:"due"`
	DueDate              string   `json:"due_date"`
	DueTime              string   `json:"due_time"`
	JobType              string   `json:"job_type,omitempty"`
	CustomerPhoneType    bool     `json:"customer_phone_type"`
	CustomerPhysicalType bool     `json:"customer_physical_type"`
	CustomerTown         string   `json:"customer_town,omitempty"`
	CustomerType         string   `json:"customer_type,omitempty"`
	JobFor               []string `json:"job_for,omitempty"`
}

var jobForLabels = map[string][]string{
	string(GenderMale):           {"Man"},
	string(GenderFemale):         {"Kvinna"},
	string(CertificationBoth):    {"Godkänd tolk", "Auktoriserad"},
	string(CertificationYes):     {"Auktoriserad"},
	string(CertificationNHealth): {"Sjukvårdstolk"},
	string(CertificationLaw):     {"Rätttstolk"},
	string(CertificationNLaw):    {"Rätttstolk"},
}

// DueLayout is the wall-clock layout used in messages and views.
const DueLayout = "2006-01-02 15:04:05"

// NewView flattens a job for notification payloads. Times are rendered in loc.
func NewView(job Job, customerType string, loc *time.Location) View {
	if loc == nil {
		loc = time.UTC
	}
	due := job.Due.In(loc).Format(DueLayout)
	date, clock, _ := strings.Cut(due, " ")

	view := View{
		JobID:                job.ID,
		FromLanguageID:       job.FromLanguageID,
		Immediate:            job.Immediate,
		Duration:             job.Duration,
		Status:               string(job.Status),
		Gender:               string(job.Gender),
		Certified:            string(job.Certification),
		Due:                  due,
		DueDate:              date,
		DueTime:              clock,
		JobType:              string(job.JobType),
		CustomerPhoneType:    job.CustomerPhoneType,
		CustomerPhysicalType: job.CustomerPhysicalType,
		CustomerTown:         job.Town,
		CustomerType:         customerType,
	}
	if job.Gender != GenderAny {
		view.JobFor = append(view.JobFor, jobForLabels[string(job.Gender)]...)
	}
	if job.Certification != CertificationNone {
		view.JobFor = append(view.JobFor, jobForLabels[string(job.Certification)]...)
	}
	return view
}
