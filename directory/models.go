package directory

import "time"

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsStaff reports whether the role may act on any job.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTranslator, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Translator populations.
const (
	TranslatorProfessional = "professional"
	TranslatorRWS          = "rwstranslator"
	TranslatorVolunteer    = "volunteer"
)

// Customer billing populations.
const (
	ConsumerRWS  = "rwsconsumer"
	ConsumerNGO  = "ngo"
	ConsumerPaid = "paid"
)

// Translator qualification levels as stored in user meta.
const (
	LevelCertified              = "Certified"
	LevelCertifiedLaw           = "Certified with specialisation in law"
	LevelCertifiedHealth        = "Certified with specialisation in health care"
	LevelLayman                 = "Layman"
	LevelReadTranslationCourses = "Read Translation courses"
)

// Meta carries the profile attributes used by matching and dispatch.
type Meta struct {
	ConsumerType       string
	CustomerType       string
	TranslatorType     string
	TranslatorLevel    string
	Gender             string
	City               string
	Address            string
	Instructions       string
	NotGetEmergency    bool
	NotGetNighttime    bool
	NotGetNotification bool
}

// User is the directory representation of an account. It carries no JSON
// annotations so presentation layers can shape it themselves.
type User struct {
	ID           int64
	Email        string
	Name         string
	Mobile       string
	Role         Role
	Active       bool
	PasswordHash string
	Meta         Meta
	CreatedAt    time.Time
}

// TranslatorQuery filters active translators for a job.
type TranslatorQuery struct {
	TranslatorType string
	LanguageID     int64
	Gender         string
	Levels         []string
	Exclude        []int64
}
