package main

import (
	"github.com/hibiken/asynq"

	"github.com/storefront/storefront-api/internal/app"
	"github.com/storefront/storefront-api/internal/platform/db"
)

// SchemaMigrator is the subset of db.Migrator the CLI drives.
type SchemaMigrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// Deps builds the external collaborators lazily so that --help never dials out.
type Deps struct {
	Migrator func() (SchemaMigrator, error)
	Jobs     func() (*JobsCLI, error)
}

func defaultDeps() Deps {
	return Deps{
		Migrator: func() (SchemaMigrator, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return db.NewMigrator(cfg.PGDSN)
		},
		Jobs: func() (*JobsCLI, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
			return NewJobsCLI(asynq.NewClient(opts), asynq.NewInspector(opts)), nil
		},
	}
}
