package journal

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/voxgate/callgateway/internal/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// pgx5URL rewrites a postgres:// DSN to the pgx5:// scheme golang-migrate's
// pgx/v5 database driver registers itself under.
func pgx5URL(dsn string) string {
	if idx := strings.Index(dsn, "://"); idx >= 0 {
		return "pgx5" + dsn[idx:]
	}
	return "pgx5://" + dsn
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, core.NewError("journal.newMigrator", core.ErrInternal, "open embedded migrations", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(dsn))
	if err != nil {
		return nil, core.NewError("journal.newMigrator", core.ErrConnection, "connect migration runner", err)
	}
	return m, nil
}

// MigrateToLatest applies every pending migration in order, each inside its
// own transaction, tracking applied versions in golang-migrate's
// schema_migrations table (§4.7's schema_versions requirement). It is
// idempotent: a second call against an up-to-date schema is a no-op.
func MigrateToLatest(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return core.NewError("journal.MigrateToLatest", core.ErrServerError, "apply migrations", err)
	}
	return nil
}

// SchemaVersion reports the currently applied migration version and whether
// the schema is in a dirty (partially-applied) state.
func SchemaVersion(dsn string) (version uint, dirty bool, err error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, core.NewError("journal.SchemaVersion", core.ErrServerError, "read schema version", err)
	}
	return version, dirty, nil
}
