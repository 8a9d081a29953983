// Package token signs and verifies the bearer tokens handed to API clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the lifetime of an access token.
	DefaultTTL = 48 * time.Hour
	// DefaultResetGrantTTL is the lifetime of a password-reset grant.
	DefaultResetGrantTTL = 15 * time.Minute

	resetAudience = "password-reset"
)

var (
	// ErrMissingSecret is returned at construction when no signing secret is configured.
	ErrMissingSecret = errors.New("token: signing secret must be provided")
	// ErrInvalidToken indicates a malformed, forged or mis-scoped token.
	ErrInvalidToken = errors.New("token: invalid token")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token: token expired")
)

// Config carries the signing material injected at startup.
type Config struct {
	Secret        string
	TTL           time.Duration
	ResetGrantTTL time.Duration
	Issuer        string
}

// Claims is the identity carried by an access token.
type Claims struct {
	ID    string
	Email string
	Role  string
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Issuer signs HS256 tokens with a server-held secret.
type Issuer struct {
	secret        []byte
	ttl           time.Duration
	resetGrantTTL time.Duration
	issuer        string
	now           func() time.Time
}

// NewIssuer validates cfg and constructs an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	grantTTL := cfg.ResetGrantTTL
	if grantTTL <= 0 {
		grantTTL = DefaultResetGrantTTL
	}
	return &Issuer{
		secret:        []byte(cfg.Secret),
		ttl:           ttl,
		resetGrantTTL: grantTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// Issue signs an access token for claims.
func (i *Issuer) Issue(claims Claims) (string, error) {
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: claims.Email,
		Role:  claims.Role,
	})
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses an access token and returns its claims.
func (i *Issuer) Verify(raw string) (Claims, error) {
	claims := &accessClaims{}
	if err := i.parse(raw, claims); err != nil {
		return Claims{}, err
	}
	// Reset grants share the key but must never pass as access tokens.
	if len(claims.Audience) > 0 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// IssueResetGrant signs a short-lived token proving a verification code for
// email was accepted.
func (i *Issuer) IssueResetGrant(email string) (string, error) {
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{resetAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.resetGrantTTL)),
	})
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign reset grant: %w", err)
	}
	return signed, nil
}

// VerifyResetGrant checks that raw is an unexpired reset grant for email.
func (i *Issuer) VerifyResetGrant(raw, email string) error {
	claims := &jwt.RegisteredClaims{}
	if err := i.parse(raw, claims, jwt.WithAudience(resetAudience)); err != nil {
		return err
	}
	if claims.Subject != email {
		return ErrInvalidToken
	}
	return nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
