package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const accountColumns = `id, email, name, password_hash, role, active, verification_code,
	verification_code_expires_at, phone_number, address, avatar, age, gender, created_at, updated_at`

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Repository provides PostgreSQL backed account persistence.
type Repository struct {
	db    dbtx
	now   func() time.Time
	newID func() string
}

// NewRepository constructs a repository over a pgx pool or transaction.
func NewRepository(db dbtx) *Repository {
	return &Repository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// FindByEmail fetches an account by its exact email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByID fetches an account by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// Insert stores a new account. A collision on the email index yields ErrDuplicateEmail.
func (r *Repository) Insert(ctx context.Context, in NewAccount) (*Account, error) {
	now := r.now()
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	var gender *string
	if in.Profile.Gender != nil {
		g := string(*in.Profile.Gender)
		gender = &g
	}
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (
			id, email, name, password_hash, role, active,
			phone_number, address, avatar, age, gender, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING `+accountColumns,
		r.newID(),
		in.Email,
		in.Name,
		in.PasswordHash,
		string(role),
		in.Active,
		in.Profile.PhoneNumber,
		in.Profile.Address,
		in.Profile.Avatar,
		in.Profile.Age,
		gender,
		now,
	)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("accounts: insert: %w", err)
	}
	return account, nil
}

// UpdateByEmail applies patch to the account with email and returns the updated record.
func (r *Repository) UpdateByEmail(ctx context.Context, email string, patch Patch) (*Account, error) {
	if patch.Empty() {
		return r.FindByEmail(ctx, email)
	}
	return r.update(ctx, "email", email, patch)
}

// UpdateByID applies patch to the account with id and returns the updated record.
func (r *Repository) UpdateByID(ctx context.Context, id string, patch Patch) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}
	return r.update(ctx, "id", id, patch)
}

func (r *Repository) update(ctx context.Context, keyColumn, key string, patch Patch) (*Account, error) {
	sets := []string{"updated_at = $1"}
	args := []any{r.now()}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}
	if patch.PhoneNumber != nil {
		add("phone_number", *patch.PhoneNumber)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Avatar != nil {
		add("avatar", *patch.Avatar)
	}
	if patch.Age != nil {
		add("age", *patch.Age)
	}
	if patch.Gender != nil {
		add("gender", string(*patch.Gender))
	}
	if patch.ResetCode != nil {
		add("verification_code", patch.ResetCode.Code)
		add("verification_code_expires_at", patch.ResetCode.ExpiresAt)
	}
	args = append(args, key)
	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") +
		` WHERE ` + keyColumn + ` = $` + strconv.Itoa(len(args)) + ` RETURNING ` + accountColumns
	account, err := scanAccount(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("accounts: update: %w", err)
	}
	return account, nil
}

// ConsumeCode clears the verification code of email only if it still equals
// code and is unexpired at now. ErrNotFound means nothing matched.
func (r *Repository) ConsumeCode(ctx context.Context, email, code string, now time.Time) (*Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts
		SET verification_code = NULL, verification_code_expires_at = NULL, updated_at = $4
		WHERE email = $1 AND verification_code = $2
			AND (verification_code_expires_at IS NULL OR verification_code_expires_at > $3)
		RETURNING `+accountColumns, email, code, now, r.now())
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("accounts: consume code: %w", err)
	}
	return account, nil
}

// ClearExpiredCodes nulls every verification code whose expiry is at or before now.
func (r *Repository) ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE accounts
		SET verification_code = NULL, verification_code_expires_at = NULL, updated_at = $1
		WHERE verification_code IS NOT NULL AND verification_code_expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("accounts: clear expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account Account
		role    string
		gender  *string
	)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&role,
		&account.Active,
		&account.VerificationCode,
		&account.VerificationCodeExpiresAt,
		&account.Profile.PhoneNumber,
		&account.Profile.Address,
		&account.Profile.Avatar,
		&account.Profile.Age,
		&gender,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	account.Role = Role(role)
	if gender != nil {
		g := Gender(*gender)
		account.Profile.Gender = &g
	}
	return &account, nil
}
