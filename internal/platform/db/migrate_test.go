package db

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr      error
	downErr    error
	version    uint
	versionErr error
}

func (f *fakeMigrator) Up() error   { return f.upErr }
func (f *fakeMigrator) Down() error { return f.downErr }
func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, false, f.versionErr
}
func (f *fakeMigrator) Close() (error, error) { return nil, nil }

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost/db", MigrateURL("postgres://u:p@localhost/db"))
	assert.Equal(t, "pgx5://u:p@localhost/db", MigrateURL("postgresql://u:p@localhost/db"))
	assert.Equal(t, "pgx5://u@h/db", MigrateURL("pgx5://u@h/db"))
}

func TestMigratorTreatsNoChangeAsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrator{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
}

func TestMigratorWrapsFailures(t *testing.T) {
	boom := errors.New("boom")
	m := &Migrator{m: &fakeMigrator{upErr: boom}}
	assert.ErrorIs(t, m.Up(), boom)
}

func TestMigratorVersion(t *testing.T) {
	m := &Migrator{m: &fakeMigrator{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrator{version: 1}}
	v, _, err = m.Version()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
