package auth

import (
	"errors"
	"fmt"

	"github.com/storefront/storefront-api/internal/accounts"
)

var (
	// ErrConflict indicates the email is already registered.
	ErrConflict = errors.New("auth: email already registered")
	// ErrNotFound indicates no account matched the email or id.
	ErrNotFound = errors.New("auth: account not found")
	// ErrUnauthorized covers a bad password and a bad or missing verification code.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidCode is the Unauthorized case for verification codes.
	ErrInvalidCode = fmt.Errorf("%w: invalid code", ErrUnauthorized)
	// ErrTooManyRequests is returned when reset codes are requested too often.
	ErrTooManyRequests = errors.New("auth: reset code requested too recently")
)

// Result is the success envelope returned by every operation.
type Result struct {
	Status      int              `json:"status"`
	Message     string           `json:"message"`
	Data        *accounts.Public `json:"data,omitempty"`
	AccessToken string           `json:"access_token,omitempty"`
	ResetToken  string           `json:"reset_token,omitempty"`
}

// SignUpRequest registers a new account.
type SignUpRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=30"`
	Email       string  `json:"email" validate:"required,min=3,email"`
	Password    string  `json:"password" validate:"required,min=3,max=20"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=200"`
	Avatar      *string `json:"avatar,omitempty" validate:"omitempty,url"`
	Age         *int32  `json:"age,omitempty" validate:"omitempty,gte=18,lte=100"`
	Gender      *string `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
}

// SignInRequest carries credentials. ChangePassword reuses its shape.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3,max=20"`
}

// ResetPasswordRequest opens a reset window for email.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyCodeRequest submits the mailed code.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// ChangePasswordRequest sets a new password. ResetToken is the grant returned
// by VerifyCode; it is only required when the service is configured to demand it.
type ChangePasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=3,max=20"`
	ResetToken string `json:"reset_token,omitempty"`
}

func (r SignUpRequest) profile() accounts.Profile {
	p := accounts.Profile{
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		Avatar:      r.Avatar,
		Age:         r.Age,
	}
	if r.Gender != nil {
		g := accounts.Gender(*r.Gender)
		p.Gender = &g
	}
	return p
}

// UpdateAccountRequest is an admin edit. Omitted fields are left untouched.
type UpdateAccountRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=3,max=30"`
	Email       *string `json:"email,omitempty" validate:"omitempty,min=3,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=3,max=20"`
	Role        *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	Active      *bool   `json:"active,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=200"`
	Avatar      *string `json:"avatar,omitempty" validate:"omitempty,url"`
	Age         *int32  `json:"age,omitempty" validate:"omitempty,gte=18,lte=100"`
	Gender      *string `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
}

func (r UpdateAccountRequest) patch(hasher Hasher) (accounts.Patch, error) {
	p := accounts.Patch{
		Email:       r.Email,
		Name:        r.Name,
		Active:      r.Active,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		Avatar:      r.Avatar,
		Age:         r.Age,
	}
	if r.Password != nil {
		hash, err := hasher.Hash(*r.Password)
		if err != nil {
			return accounts.Patch{}, err
		}
		p.PasswordHash = &hash
	}
	if r.Role != nil {
		role := accounts.Role(*r.Role)
		p.Role = &role
	}
	if r.Gender != nil {
		gender := accounts.Gender(*r.Gender)
		p.Gender = &gender
	}
	return p, nil
}
