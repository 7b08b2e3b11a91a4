package auth

import "bookingflow/directory"

// Claims identify the caller behind a verified token.
type Claims struct {
	UserID int64
	Role   directory.Role
}

// RegisterRequest contains account data supplied by callers. Profile fields
// are stored as user meta.
type RegisterRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	Mobile   string         `json:"mobile"`
	Role     directory.Role `json:"role"`

	ConsumerType    string `json:"consumer_type"`
	CustomerType    string `json:"customer_type"`
	TranslatorType  string `json:"translator_type"`
	TranslatorLevel string `json:"translator_level"`
	Gender          string `json:"gender"`
	City            string `json:"city"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
