package matching

import (
	"context"
	"slices"
	"testing"

	"bookingflow/booking"
	"bookingflow/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users     map[int64]directory.User
	languages map[int64][]int64
	blacklist map[int64][]int64
	towns     map[[2]int64]bool
	lastQuery directory.TranslatorQuery
}

func (d *fakeDirectory) UserByID(_ context.Context, id int64) (directory.User, error) {
	u, ok := d.users[id]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) Blacklist(_ context.Context, ownerID int64) ([]int64, error) {
	return d.blacklist[ownerID], nil
}

// FindTranslators mirrors the SQL filter without the exclusion list so the
// engine's own blacklist handling is exercised too.
func (d *fakeDirectory) FindTranslators(_ context.Context, q directory.TranslatorQuery) ([]directory.User, error) {
	d.lastQuery = q
	var out []directory.User
	for _, id := range sortedIDs(d.users) {
		u := d.users[id]
		if u.Role != directory.RoleTranslator || !u.Active {
			continue
		}
		if u.Meta.TranslatorType != q.TranslatorType || !slices.Contains(q.Levels, u.Meta.TranslatorLevel) {
			continue
		}
		if q.Gender != "" && u.Meta.Gender != q.Gender {
			continue
		}
		if !slices.Contains(d.languages[u.ID], q.LanguageID) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *fakeDirectory) TranslatorLanguages(_ context.Context, userID int64) ([]int64, error) {
	return d.languages[userID], nil
}

func (d *fakeDirectory) TownsOverlap(_ context.Context, customerID, translatorID int64) (bool, error) {
	return d.towns[[2]int64{customerID, translatorID}], nil
}

type fakeJobs struct {
	jobs     []booking.Job
	assigned map[int64]int64
}

func (f *fakeJobs) PendingJobs(_ context.Context, q booking.PendingQuery) ([]booking.Job, error) {
	var out []booking.Job
	for _, j := range f.jobs {
		if j.Status != booking.StatusPending || j.JobType != q.JobType {
			continue
		}
		if !slices.Contains(q.LanguageIDs, j.FromLanguageID) || !slices.Contains(q.Certifications, j.Certification) {
			continue
		}
		if j.Gender != booking.GenderAny && j.Gender != q.Gender {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) ActiveAssignees(_ context.Context, ids []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, id := range ids {
		if t, ok := f.assigned[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func sortedIDs(users map[int64]directory.User) []int64 {
	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func translator(id int64, typ, level, gender string) directory.User {
	return directory.User{
		ID:     id,
		Email:  "t@example.com",
		Role:   directory.RoleTranslator,
		Active: true,
		Meta:   directory.Meta{TranslatorType: typ, TranslatorLevel: level, Gender: gender},
	}
}

func TestLevelsFor_FirstMatchWins(t *testing.T) {
	tests := []struct {
		cert booking.Certification
		want []string
	}{
		{booking.CertificationYes, certifiedLevels},
		{booking.CertificationBoth, certifiedLevels},
		{booking.CertificationLaw, []string{directory.LevelCertifiedLaw}},
		{booking.CertificationNLaw, []string{directory.LevelCertifiedLaw}},
		{booking.CertificationHealth, []string{directory.LevelCertifiedHealth}},
		{booking.CertificationNHealth, []string{directory.LevelCertifiedHealth}},
		{booking.CertificationNormal, laymanLevels},
		{booking.CertificationNone, allLevels},
		{booking.Certification("bogus"), nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.cert), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelsFor(tt.cert))
		})
	}
}

func TestCertificationsFor(t *testing.T) {
	assert.ElementsMatch(t,
		[]booking.Certification{booking.CertificationNone, booking.CertificationNormal},
		CertificationsFor(directory.LevelLayman))
	assert.ElementsMatch(t,
		[]booking.Certification{booking.CertificationNone, booking.CertificationYes, booking.CertificationBoth, booking.CertificationLaw, booking.CertificationNLaw},
		CertificationsFor(directory.LevelCertifiedLaw))
	assert.Empty(t, CertificationsFor("Unknown"))
}

func TestTypeMappings(t *testing.T) {
	assert.Equal(t, directory.TranslatorProfessional, TranslatorTypeFor(booking.JobTypePaid))
	assert.Equal(t, directory.TranslatorRWS, TranslatorTypeFor(booking.JobTypeRWS))
	assert.Equal(t, directory.TranslatorVolunteer, TranslatorTypeFor(booking.JobTypeUnpaid))
	assert.Equal(t, "", TranslatorTypeFor(booking.JobTypeNone))

	assert.Equal(t, booking.JobTypePaid, JobTypeFor(directory.TranslatorProfessional))
	assert.Equal(t, booking.JobTypeRWS, JobTypeFor(directory.TranslatorRWS))
	assert.Equal(t, booking.JobTypeUnpaid, JobTypeFor("anything"))
}

func TestPotentialTranslators(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]directory.User{
			10: translator(10, directory.TranslatorProfessional, directory.LevelCertified, "female"),
			11: translator(11, directory.TranslatorProfessional, directory.LevelLayman, "female"),
			12: translator(12, directory.TranslatorProfessional, directory.LevelCertifiedLaw, "male"),
			13: translator(13, directory.TranslatorVolunteer, directory.LevelCertified, "female"),
		},
		languages: map[int64][]int64{10: {5}, 11: {5}, 12: {5}, 13: {5}},
		blacklist: map[int64][]int64{},
	}
	engine := NewEngine(dir, &fakeJobs{})

	job := booking.Job{ID: 1, OwnerID: 100, FromLanguageID: 5, JobType: booking.JobTypePaid, Certification: booking.CertificationBoth}
	got, err := engine.PotentialTranslators(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 12}, userIDs(got), "both resolves to certified levels only")
	assert.Equal(t, directory.TranslatorProfessional, dir.lastQuery.TranslatorType)

	job.Gender = booking.GenderFemale
	got, err = engine.PotentialTranslators(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, userIDs(got))
}

func TestPotentialTranslators_BlacklistEveryone(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]directory.User{
			10: translator(10, directory.TranslatorProfessional, directory.LevelLayman, ""),
			11: translator(11, directory.TranslatorProfessional, directory.LevelReadTranslationCourses, ""),
		},
		languages: map[int64][]int64{10: {5}, 11: {5}},
		blacklist: map[int64][]int64{100: {10, 11}},
	}
	engine := NewEngine(dir, &fakeJobs{})

	got, err := engine.PotentialTranslators(context.Background(), booking.Job{
		OwnerID: 100, FromLanguageID: 5, JobType: booking.JobTypePaid, Certification: booking.CertificationNormal,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []int64{10, 11}, dir.lastQuery.Exclude)
}

func TestPotentialJobIDsWithUserID_TownFilter(t *testing.T) {
	me := translator(10, directory.TranslatorRWS, directory.LevelLayman, "male")
	dir := &fakeDirectory{
		users:     map[int64]directory.User{10: me},
		languages: map[int64][]int64{10: {5, 6}},
		towns:     map[[2]int64]bool{{200, 10}: true},
	}
	jobs := &fakeJobs{jobs: []booking.Job{
		{ID: 1, OwnerID: 100, Status: booking.StatusPending, JobType: booking.JobTypeRWS, FromLanguageID: 5, Certification: booking.CertificationNormal, CustomerPhysicalType: true},
		{ID: 2, OwnerID: 200, Status: booking.StatusPending, JobType: booking.JobTypeRWS, FromLanguageID: 5, Certification: booking.CertificationNormal, CustomerPhysicalType: true},
		{ID: 3, OwnerID: 100, Status: booking.StatusPending, JobType: booking.JobTypeRWS, FromLanguageID: 6, CustomerPhysicalType: true, CustomerPhoneType: true},
		{ID: 4, OwnerID: 100, Status: booking.StatusPending, JobType: booking.JobTypeRWS, FromLanguageID: 6, Certification: booking.CertificationYes},
		{ID: 5, OwnerID: 100, Status: booking.StatusPending, JobType: booking.JobTypeRWS, FromLanguageID: 6, Gender: booking.GenderFemale},
		{ID: 6, OwnerID: 100, Status: booking.StatusAssigned, JobType: booking.JobTypeRWS, FromLanguageID: 6},
	}}
	engine := NewEngine(dir, jobs)

	ids, err := engine.PotentialJobIDsWithUserID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids)
}

func TestPotentialJobs_HidesJobsPinnedToOthers(t *testing.T) {
	me := translator(10, directory.TranslatorProfessional, directory.LevelCertified, "")
	dir := &fakeDirectory{
		users:     map[int64]directory.User{10: me},
		languages: map[int64][]int64{10: {5}},
	}
	jobs := &fakeJobs{
		jobs: []booking.Job{
			{ID: 1, Status: booking.StatusPending, JobType: booking.JobTypePaid, FromLanguageID: 5, Certification: booking.CertificationYes},
			{ID: 2, Status: booking.StatusPending, JobType: booking.JobTypePaid, FromLanguageID: 5},
			{ID: 3, Status: booking.StatusPending, JobType: booking.JobTypePaid, FromLanguageID: 5},
		},
		assigned: map[int64]int64{2: 99, 3: 10},
	}
	engine := NewEngine(dir, jobs)

	got, err := engine.PotentialJobs(context.Background(), me)
	require.NoError(t, err)
	var ids []int64
	for _, j := range got {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
}

func userIDs(users []directory.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
