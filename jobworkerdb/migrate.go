package jobworkerdb

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/domonda/go-errs"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsVersionTable is the goose version table of the migrations of this package.
const MigrationsVersionTable = "background_jobs_db_version"

// Migrate applies the migrations creating the background_jobs table.
// conn must be a PostgreSQL database.
//
// The migrations are tracked in MigrationsVersionTable
// and don't change the global state of the goose package.
func Migrate(ctx context.Context, conn *sql.DB) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	provider, err := newMigrationsProvider(conn)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return err
	}
	log.Info("Migrated background_jobs table").
		Int("applied", len(results)).
		Any("version", version).
		Log()
	return nil
}

func newMigrationsProvider(conn *sql.DB) (*goose.Provider, error) {
	store, err := database.NewStore(database.DialectPostgres, MigrationsVersionTable)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	// The dialect is defined by the store
	return goose.NewProvider("", conn, fsys, goose.WithStore(store))
}
