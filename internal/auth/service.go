package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/storefront/storefront-api/internal/accounts"
	"github.com/storefront/storefront-api/internal/notify"
	"github.com/storefront/storefront-api/internal/security/otp"
	"github.com/storefront/storefront-api/internal/security/token"
)

// DefaultCodeTTL bounds how long a mailed verification code stays valid.
const DefaultCodeTTL = 10 * time.Minute

// Directory is the account store the service reads and writes.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*accounts.Account, error)
	FindByID(ctx context.Context, id string) (*accounts.Account, error)
	Insert(ctx context.Context, in accounts.NewAccount) (*accounts.Account, error)
	UpdateByEmail(ctx context.Context, email string, patch accounts.Patch) (*accounts.Account, error)
	UpdateByID(ctx context.Context, id string, patch accounts.Patch) (*accounts.Account, error)
	ConsumeCode(ctx context.Context, email, code string, now time.Time) (*accounts.Account, error)
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer mints access tokens and reset grants.
type TokenIssuer interface {
	Issue(claims token.Claims) (string, error)
	IssueResetGrant(email string) (string, error)
	VerifyResetGrant(raw, email string) error
}

// CodeGenerator produces one-time verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Notifier dispatches outbound email.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Throttle limits how often a reset code may be requested for one email.
// Release hands back a window whose request never produced a code.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OutcomeRecorder counts operation outcomes.
type OutcomeRecorder interface {
	ObserveAuth(operation, outcome string)
}

// Config tunes the reset flow.
type Config struct {
	CodeTTL           time.Duration
	RequireResetGrant bool
	Brand             string
}

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Directory Directory
	Hasher    Hasher
	Tokens    TokenIssuer
	Codes     CodeGenerator
	Notifier  Notifier
	Throttle  Throttle
	Metrics   OutcomeRecorder
	Logger    *slog.Logger
	Config    Config
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	hasher    Hasher
	tokens    TokenIssuer
	codes     CodeGenerator
	notifier  Notifier
	throttle  Throttle
	metrics   OutcomeRecorder
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService constructs a new Service.
func NewService(deps ServiceDeps) *Service {
	cfg := deps.Config
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.Brand == "" {
		cfg.Brand = "Storefront"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory: deps.Directory,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		codes:     deps.Codes,
		notifier:  deps.Notifier,
		throttle:  deps.Throttle,
		metrics:   deps.Metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SignUp registers an account with role user and returns it with an access token.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (res *Result, err error) {
	defer s.observe("sign_up", &err)

	if _, err := s.directory.FindByEmail(ctx, req.Email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, accounts.ErrNotFound) {
		return nil, fmt.Errorf("auth: sign up lookup: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: sign up: %w", err)
	}
	account, err := s.directory.Insert(ctx, accounts.NewAccount{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         accounts.RoleUser,
		Active:       true,
		Profile:      req.profile(),
	})
	if err != nil {
		// Lost a race with a concurrent sign-up for the same email.
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("auth: sign up insert: %w", err)
	}

	accessToken, err := s.issueFor(account)
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &Result{
		Status:      http.StatusOK,
		Message:     "User created successfully",
		Data:        &public,
		AccessToken: accessToken,
	}, nil
}

// SignIn checks credentials and returns the account with an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (res *Result, err error) {
	defer s.observe("sign_in", &err)

	account, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrUnauthorized
	}
	accessToken, err := s.issueFor(account)
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &Result{
		Status:      http.StatusOK,
		Message:     "User logged in successfully",
		Data:        &public,
		AccessToken: accessToken,
	}, nil
}

// RequestPasswordReset stores a fresh verification code on the account and
// mails it. The code itself is never returned.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (res *Result, err error) {
	defer s.observe("reset_password", &err)

	if _, err := s.lookup(ctx, email); err != nil {
		return nil, err
	}
	if s.throttle != nil {
		allowed, claimErr := s.throttle.Allow(ctx, email)
		if claimErr != nil {
			return nil, fmt.Errorf("auth: reset throttle: %w", claimErr)
		}
		if !allowed {
			return nil, ErrTooManyRequests
		}
		defer func() {
			if err != nil {
				s.releaseThrottle(ctx, email)
			}
		}()
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("auth: reset code: %w", err)
	}
	expiresAt := s.now().UTC().Add(s.cfg.CodeTTL)
	if _, err := s.directory.UpdateByEmail(ctx, email, accounts.Patch{
		ResetCode: &accounts.ResetCode{Code: code, ExpiresAt: expiresAt},
	}); err != nil {
		return nil, s.mapDirectoryErr("store reset code", err)
	}

	msg, err := notify.ResetCodeMessage(email, notify.ResetCodeData{
		Brand:    s.cfg.Brand,
		Code:     code,
		ValidFor: s.cfg.CodeTTL.String(),
	})
	if err != nil {
		return nil, err
	}
	// The stored code stays in place when dispatch fails. A retry replaces it.
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error("dispatch reset code", slog.Any("error", err))
		return nil, fmt.Errorf("auth: dispatch reset code: %w", err)
	}

	return &Result{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Code sent successfully on your email (%s)", email),
	}, nil
}

// VerifyCode consumes the stored verification code when it matches.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (res *Result, err error) {
	defer s.observe("verify_code", &err)

	account, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !otp.Valid(code) || !account.HasOpenCode(now) {
		return nil, ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(*account.VerificationCode), []byte(code)) != 1 {
		return nil, ErrInvalidCode
	}
	// The clear only lands if the stored code is still the one compared above.
	if _, err := s.directory.ConsumeCode(ctx, email, code, now.UTC()); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("auth: consume reset code: %w", err)
	}

	grant, err := s.tokens.IssueResetGrant(email)
	if err != nil {
		return nil, fmt.Errorf("auth: reset grant: %w", err)
	}
	return &Result{
		Status:     http.StatusOK,
		Message:    "Code verified successfully, go to change your password",
		ResetToken: grant,
	}, nil
}

// ChangePassword replaces the account's password hash. When the service is
// configured with RequireResetGrant, resetGrant must be a valid grant for email.
func (s *Service) ChangePassword(ctx context.Context, email, newPassword, resetGrant string) (res *Result, err error) {
	defer s.observe("change_password", &err)

	if _, err := s.lookup(ctx, email); err != nil {
		return nil, err
	}
	if s.cfg.RequireResetGrant {
		if err := s.tokens.VerifyResetGrant(resetGrant, email); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("auth: change password: %w", err)
	}
	if _, err := s.directory.UpdateByEmail(ctx, email, accounts.Patch{PasswordHash: &hash}); err != nil {
		return nil, s.mapDirectoryErr("store password", err)
	}
	return &Result{
		Status:  http.StatusOK,
		Message: "Password changed successfully, go to login",
	}, nil
}

// Me returns the public record of the account identified by id.
func (s *Service) Me(ctx context.Context, id string) (*Result, error) {
	account, err := s.directory.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("auth: me: %w", err)
	}
	public := account.Public()
	return &Result{Status: http.StatusOK, Message: "Current user", Data: &public}, nil
}

// Update applies an admin edit to the account identified by id. A new
// password is hashed before it is stored.
func (s *Service) Update(ctx context.Context, id string, req UpdateAccountRequest) (res *Result, err error) {
	defer s.observe("update", &err)

	patch, err := req.patch(s.hasher)
	if err != nil {
		return nil, fmt.Errorf("auth: update: %w", err)
	}
	account, err := s.directory.UpdateByID(ctx, id, patch)
	if err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, s.mapDirectoryErr("update", err)
	}
	public := account.Public()
	return &Result{Status: http.StatusOK, Message: "User updated successfully", Data: &public}, nil
}

// Deactivate flips the account's active flag off. The record is kept.
func (s *Service) Deactivate(ctx context.Context, id string) (res *Result, err error) {
	defer s.observe("deactivate", &err)

	inactive := false
	if _, err := s.directory.UpdateByID(ctx, id, accounts.Patch{Active: &inactive}); err != nil {
		return nil, s.mapDirectoryErr("deactivate", err)
	}
	return &Result{Status: http.StatusOK, Message: "User is un sctive now"}, nil
}

func (s *Service) lookup(ctx context.Context, email string) (*accounts.Account, error) {
	account, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("auth: lookup: %w", err)
	}
	return account, nil
}

func (s *Service) issueFor(account *accounts.Account) (string, error) {
	signed, err := s.tokens.Issue(token.Claims{
		ID:    account.ID,
		Email: account.Email,
		Role:  string(account.Role),
	})
	if err != nil {
		return "", fmt.Errorf("auth: issue token: %w", err)
	}
	return signed, nil
}

func (s *Service) mapDirectoryErr(op string, err error) error {
	if errors.Is(err, accounts.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("auth: %s: %w", op, err)
}

func (s *Service) releaseThrottle(ctx context.Context, email string) {
	if err := s.throttle.Release(context.WithoutCancel(ctx), email); err != nil {
		s.logger.Warn("release reset throttle", slog.Any("error", err))
	}
}

func (s *Service) observe(operation string, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAuth(operation, outcome(*errp))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTooManyRequests):
		return "throttled"
	default:
		return "error"
	}
}
