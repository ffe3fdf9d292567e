package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/platform"
)

// Options selects and configures a Store backend.
type Options struct {
	Driver      string // postgres, sqlite or memory
	DatabaseURL string
	SQLitePath  string
	Pool        PoolConfig
	AutoMigrate bool
}

// Open creates the Store named by opts.Driver, applying migrations first when
// opts.AutoMigrate is set.
func Open(ctx context.Context, opts Options) (Store, error) {
	log := zap.L().With(zap.String("driver", opts.Driver))

	switch opts.Driver {
	case "postgres":
		if opts.AutoMigrate {
			if err := platform.MigratePostgres(opts.DatabaseURL); err != nil {
				return nil, eris.Wrap(err, "store: migrate postgres")
			}
			log.Debug("postgres migrations applied")
		}
		return NewPostgres(ctx, opts.DatabaseURL, &opts.Pool)
	case "sqlite", "":
		st, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if opts.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close() //nolint:errcheck
				return nil, err
			}
			log.Debug("sqlite migrations applied", zap.String("path", opts.SQLitePath))
		}
		return st, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
}
