// Package matching decides which translators may serve a job and which
// pending jobs a translator may see.
package matching

import (
	"context"
	"fmt"
	"slices"

	"bookingflow/booking"
	"bookingflow/directory"
)

// Directory is the user lookup surface the engine needs.
type Directory interface {
	UserByID(ctx context.Context, id int64) (directory.User, error)
	Blacklist(ctx context.Context, ownerID int64) ([]int64, error)
	FindTranslators(ctx context.Context, q directory.TranslatorQuery) ([]directory.User, error)
	TranslatorLanguages(ctx context.Context, userID int64) ([]int64, error)
	TownsOverlap(ctx context.Context, customerID, translatorID int64) (bool, error)
}

// JobFinder is the job lookup surface the engine needs.
type JobFinder interface {
	PendingJobs(ctx context.Context, q booking.PendingQuery) ([]booking.Job, error)
	ActiveAssignees(ctx context.Context, jobIDs []int64) (map[int64]int64, error)
}

var (
	certifiedLevels = []string{directory.LevelCertified, directory.LevelCertifiedLaw, directory.LevelCertifiedHealth}
	laymanLevels    = []string{directory.LevelLayman, directory.LevelReadTranslationCourses}
	allLevels       = []string{
		directory.LevelCertified,
		directory.LevelCertifiedLaw,
		directory.LevelCertifiedHealth,
		directory.LevelLayman,
		directory.LevelReadTranslationCourses,
	}
)

// levelRules is evaluated top to bottom and the first rule naming the
// certification wins. "both" therefore resolves to the certified levels and
// never reaches the layman rule.
var levelRules = []struct {
	certs  []booking.Certification
	levels []string
}{
	{certs: []booking.Certification{booking.CertificationYes, booking.CertificationBoth}, levels: certifiedLevels},
	{certs: []booking.Certification{booking.CertificationLaw, booking.CertificationNLaw}, levels: []string{directory.LevelCertifiedLaw}},
	{certs: []booking.Certification{booking.CertificationHealth, booking.CertificationNHealth}, levels: []string{directory.LevelCertifiedHealth}},
	{certs: []booking.Certification{booking.CertificationNormal, booking.CertificationBoth}, levels: laymanLevels},
	{certs: []booking.Certification{booking.CertificationNone}, levels: allLevels},
}

// LevelsFor returns the translator levels allowed to serve a certification.
func LevelsFor(c booking.Certification) []string {
	for _, rule := range levelRules {
		if slices.Contains(rule.certs, c) {
			return rule.levels
		}
	}
	return nil
}

// CertificationsFor is the inverse of LevelsFor: the certifications a
// translator of the given level may serve.
func CertificationsFor(level string) []booking.Certification {
	var out []booking.Certification
	for _, c := range booking.Certifications {
		if slices.Contains(LevelsFor(c), level) {
			out = append(out, c)
		}
	}
	return out
}

// TranslatorTypeFor maps a job type to the translator population serving it.
func TranslatorTypeFor(t booking.JobType) string {
	switch t {
	case booking.JobTypePaid:
		return directory.TranslatorProfessional
	case booking.JobTypeRWS:
		return directory.TranslatorRWS
	case booking.JobTypeUnpaid:
		return directory.TranslatorVolunteer
	default:
		return ""
	}
}

// JobTypeFor maps a translator population to the job type it serves.
func JobTypeFor(translatorType string) booking.JobType {
	switch translatorType {
	case directory.TranslatorProfessional:
		return booking.JobTypePaid
	case directory.TranslatorRWS:
		return booking.JobTypeRWS
	default:
		return booking.JobTypeUnpaid
	}
}

type Engine struct {
	dir  Directory
	jobs JobFinder
}

func NewEngine(dir Directory, jobs JobFinder) *Engine {
	return &Engine{dir: dir, jobs: jobs}
}

// PotentialTranslators lists active translators eligible for the job, minus
// the owner's blacklist.
func (e *Engine) PotentialTranslators(ctx context.Context, job booking.Job) ([]directory.User, error) {
	levels := LevelsFor(job.Certification)
	if len(levels) == 0 {
		return nil, nil
	}
	blacklist, err := e.dir.Blacklist(ctx, job.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("matching: load blacklist: %w", err)
	}

	translators, err := e.dir.FindTranslators(ctx, directory.TranslatorQuery{
		TranslatorType: TranslatorTypeFor(job.JobType),
		LanguageID:     job.FromLanguageID,
		Gender:         string(job.Gender),
		Levels:         levels,
		Exclude:        blacklist,
	})
	if err != nil {
		return nil, fmt.Errorf("matching: find translators: %w", err)
	}

	out := translators[:0]
	for _, t := range translators {
		if !slices.Contains(blacklist, t.ID) {
			out = append(out, t)
		}
	}
	return out, nil
}

// PotentialJobIDsWithUserID lists the pending jobs the translator could take.
func (e *Engine) PotentialJobIDsWithUserID(ctx context.Context, translatorID int64) ([]int64, error) {
	translator, err := e.dir.UserByID(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("matching: load translator: %w", err)
	}
	return e.PotentialJobIDs(ctx, translator)
}

// PotentialJobIDs is PotentialJobIDsWithUserID for an already loaded user.
func (e *Engine) PotentialJobIDs(ctx context.Context, translator directory.User) ([]int64, error) {
	jobs, err := e.eligiblePending(ctx, translator)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids, nil
}

// PotentialJobs is the translator's job board. Jobs pinned to a different
// translator are hidden.
func (e *Engine) PotentialJobs(ctx context.Context, translator directory.User) ([]booking.Job, error) {
	jobs, err := e.eligiblePending(ctx, translator)
	if err != nil || len(jobs) == 0 {
		return jobs, err
	}

	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	pinned, err := e.jobs.ActiveAssignees(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("matching: load pinned jobs: %w", err)
	}

	visible := jobs[:0]
	for _, j := range jobs {
		if holder, ok := pinned[j.ID]; ok && holder != translator.ID {
			continue
		}
		visible = append(visible, j)
	}
	return visible, nil
}

func (e *Engine) eligiblePending(ctx context.Context, translator directory.User) ([]booking.Job, error) {
	certs := CertificationsFor(translator.Meta.TranslatorLevel)
	if len(certs) == 0 {
		return nil, nil
	}
	languages, err := e.dir.TranslatorLanguages(ctx, translator.ID)
	if err != nil {
		return nil, fmt.Errorf("matching: load translator languages: %w", err)
	}
	if len(languages) == 0 {
		return nil, nil
	}

	jobs, err := e.jobs.PendingJobs(ctx, booking.PendingQuery{
		JobType:        JobTypeFor(translator.Meta.TranslatorType),
		LanguageIDs:    languages,
		Gender:         booking.Gender(translator.Meta.Gender),
		Certifications: certs,
	})
	if err != nil {
		return nil, fmt.Errorf("matching: list pending jobs: %w", err)
	}

	nearby := make(map[int64]bool)
	out := make([]booking.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.PhysicalOnly() {
			ok, seen := nearby[j.OwnerID]
			if !seen {
				ok, err = e.dir.TownsOverlap(ctx, j.OwnerID, translator.ID)
				if err != nil {
					return nil, fmt.Errorf("matching: check towns: %w", err)
				}
				nearby[j.OwnerID] = ok
			}
			if !ok {
				continue
			}
		}
		out = append(out, j)
	}
	return out, nil
}
