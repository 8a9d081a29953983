package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront-api/internal/accounts"
	"github.com/storefront/storefront-api/internal/notify"
	"github.com/storefront/storefront-api/internal/security/password"
	"github.com/storefront/storefront-api/internal/security/token"
)

type memoryDirectory struct {
	mu         sync.Mutex
	byEmail    map[string]*accounts.Account
	failNext   error
	failUpdate error
	// raceOnInsert simulates a concurrent sign-up winning between lookup and insert.
	raceOnInsert bool
	// afterFind runs once, outside the lock, after the next FindByEmail returns.
	afterFind func()
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{byEmail: map[string]*accounts.Account{}}
}

func (d *memoryDirectory) takeFailure() error {
	err := d.failNext
	d.failNext = nil
	return err
}

func (d *memoryDirectory) FindByEmail(_ context.Context, email string) (*accounts.Account, error) {
	account, err := d.findByEmail(email)
	d.mu.Lock()
	hook := d.afterFind
	d.afterFind = nil
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return account, err
}

func (d *memoryDirectory) findByEmail(email string) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	account, ok := d.byEmail[email]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) FindByID(_ context.Context, id string) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.byEmail {
		if account.ID == id {
			clone := *account
			return &clone, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (d *memoryDirectory) Insert(_ context.Context, in accounts.NewAccount) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raceOnInsert {
		return nil, fmt.Errorf("accounts: insert: %w", accounts.ErrDuplicateEmail)
	}
	if _, exists := d.byEmail[in.Email]; exists {
		return nil, accounts.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	account := &accounts.Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       in.Active,
		Profile:      in.Profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.byEmail[in.Email] = account
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) UpdateByEmail(_ context.Context, email string, patch accounts.Patch) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeUpdateFailure(); err != nil {
		return nil, err
	}
	account, ok := d.byEmail[email]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return d.apply(account, patch)
}

func (d *memoryDirectory) UpdateByID(_ context.Context, id string, patch accounts.Patch) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeUpdateFailure(); err != nil {
		return nil, err
	}
	for _, account := range d.byEmail {
		if account.ID == id {
			return d.apply(account, patch)
		}
	}
	return nil, accounts.ErrNotFound
}

func (d *memoryDirectory) ConsumeCode(_ context.Context, email, code string, now time.Time) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.byEmail[email]
	if !ok || !account.HasOpenCode(now) || *account.VerificationCode != code {
		return nil, accounts.ErrNotFound
	}
	account.VerificationCode = nil
	account.VerificationCodeExpiresAt = nil
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) takeUpdateFailure() error {
	err := d.failUpdate
	d.failUpdate = nil
	return err
}

// apply mirrors the SQL update, including the unique email index. Callers hold mu.
func (d *memoryDirectory) apply(account *accounts.Account, p accounts.Patch) (*accounts.Account, error) {
	if p.Email != nil && *p.Email != account.Email {
		if _, taken := d.byEmail[*p.Email]; taken {
			return nil, accounts.ErrDuplicateEmail
		}
		delete(d.byEmail, account.Email)
		account.Email = *p.Email
		d.byEmail[account.Email] = account
	}
	if p.Name != nil {
		account.Name = *p.Name
	}
	if p.PasswordHash != nil {
		account.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		account.Role = *p.Role
	}
	if p.Active != nil {
		account.Active = *p.Active
	}
	if p.PhoneNumber != nil {
		account.Profile.PhoneNumber = p.PhoneNumber
	}
	if p.Address != nil {
		account.Profile.Address = p.Address
	}
	if p.Avatar != nil {
		account.Profile.Avatar = p.Avatar
	}
	if p.Age != nil {
		account.Profile.Age = p.Age
	}
	if p.Gender != nil {
		account.Profile.Gender = p.Gender
	}
	if p.ResetCode != nil {
		code, expires := p.ResetCode.Code, p.ResetCode.ExpiresAt
		account.VerificationCode = &code
		account.VerificationCodeExpiresAt = &expires
	}
	account.UpdatedAt = time.Now().UTC()
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) get(t *testing.T, email string) accounts.Account {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.byEmail[email]
	require.True(t, ok, "account %s missing", email)
	return *account
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixedCodes struct {
	codes []string
	err   error
}

func (c *fixedCodes) Generate() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if len(c.codes) == 0 {
		return "", errors.New("no codes left")
	}
	code := c.codes[0]
	c.codes = c.codes[1:]
	return code, nil
}

type staticThrottle struct {
	allow    bool
	err      error
	keys     []string
	released []string
}

func (s *staticThrottle) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *staticThrottle) Release(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

// windowThrottle grants one claim per key until it is released.
type windowThrottle struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newWindowThrottle() *windowThrottle {
	return &windowThrottle{claimed: map[string]bool{}}
}

func (w *windowThrottle) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.claimed[key] {
		return false, nil
	}
	w.claimed[key] = true
	return true, nil
}

func (w *windowThrottle) Release(_ context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.claimed, key)
	return nil
}

type outcomeLog struct {
	mu      sync.Mutex
	entries []string
}

func (o *outcomeLog) ObserveAuth(operation, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, operation+":"+outcome)
}

type fixture struct {
	service   *Service
	directory *memoryDirectory
	notifier  *recordingNotifier
	codes     *fixedCodes
	issuer    *token.Issuer
	outcomes  *outcomeLog
}

type fixtureOption func(*ServiceDeps)

func withThrottle(t Throttle) fixtureOption {
	return func(d *ServiceDeps) { d.Throttle = t }
}

func requiringResetGrant() fixtureOption {
	return func(d *ServiceDeps) { d.Config.RequireResetGrant = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{Secret: "test-secret", Issuer: "storefront-test"})
	require.NoError(t, err)

	f := &fixture{
		directory: newMemoryDirectory(),
		notifier:  &recordingNotifier{},
		codes:     &fixedCodes{codes: []string{"042137", "913500", "000001"}},
		issuer:    issuer,
		outcomes:  &outcomeLog{},
	}
	deps := ServiceDeps{
		Directory: f.directory,
		Hasher:    password.NewHasher(4),
		Tokens:    issuer,
		Codes:     f.codes,
		Notifier:  f.notifier,
		Metrics:   f.outcomes,
		Config:    Config{Brand: "Storefront"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.service = NewService(deps)
	return f
}

func (f *fixture) signUp(t *testing.T, email, pass string) *Result {
	t.Helper()
	res, err := f.service.SignUp(context.Background(), SignUpRequest{Name: "Alice", Email: email, Password: pass})
	require.NoError(t, err)
	return res
}
