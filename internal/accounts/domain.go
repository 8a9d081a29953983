package accounts

import (
	"errors"
	"time"
)

// Role enumerates account privileges.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Gender is an optional profile attribute.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var (
	// ErrNotFound indicates no account matched the lookup.
	ErrNotFound = errors.New("accounts: not found")
	// ErrDuplicateEmail is returned when an insert collides with the unique email index.
	ErrDuplicateEmail = errors.New("accounts: email already registered")
)

// Account is the stored user record, including credential material.
type Account struct {
	ID                        string
	Email                     string
	Name                      string
	PasswordHash              string
	Role                      Role
	Active                    bool
	VerificationCode          *string
	VerificationCodeExpiresAt *time.Time
	Profile                   Profile
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Profile holds the optional attributes supplied at sign-up.
type Profile struct {
	PhoneNumber *string
	Address     *string
	Avatar      *string
	Age         *int32
	Gender      *Gender
}

// NewAccount carries the fields needed to insert an account.
type NewAccount struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
	Profile      Profile
}

// ResetCode is an open password-reset window.
type ResetCode struct {
	Code      string
	ExpiresAt time.Time
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Email        *string
	Name         *string
	PasswordHash *string
	Role         *Role
	Active       *bool
	PhoneNumber  *string
	Address      *string
	Avatar       *string
	Age          *int32
	Gender       *Gender
	ResetCode    *ResetCode
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.PasswordHash == nil && p.Role == nil &&
		p.Active == nil && p.PhoneNumber == nil && p.Address == nil && p.Avatar == nil &&
		p.Age == nil && p.Gender == nil && p.ResetCode == nil
}

// Public is the account shape exposed to API clients. Credential material
// never leaves the service through this type.
type Public struct {
	ID          string    `json:"_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	Active      bool      `json:"active"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Avatar      *string   `json:"avatar,omitempty"`
	Age         *int32    `json:"age,omitempty"`
	Gender      *Gender   `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Public projects the account onto its client-visible fields.
func (a *Account) Public() Public {
	return Public{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		Role:        a.Role,
		Active:      a.Active,
		PhoneNumber: a.Profile.PhoneNumber,
		Address:     a.Profile.Address,
		Avatar:      a.Profile.Avatar,
		Age:         a.Profile.Age,
		Gender:      a.Profile.Gender,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// HasOpenCode reports whether a verification code is stored and unexpired at now.
func (a *Account) HasOpenCode(now time.Time) bool {
	if a.VerificationCode == nil {
		return false
	}
	if a.VerificationCodeExpiresAt != nil && !now.Before(*a.VerificationCodeExpiresAt) {
		return false
	}
	return true
}
