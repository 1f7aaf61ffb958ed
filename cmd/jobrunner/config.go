package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-sqldb"
	"github.com/domonda/go-sqldb/db"
	"github.com/domonda/go-sqldb/pqconn"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/domonda/go-jobrunner/jobworkerdb"
)

// Config is read from the environment
// and from a .env file if ENV is not production.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     uint16 `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDb       string `envconfig:"POSTGRES_DB" default:"postgres"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	MaxRetries     int           `envconfig:"JOBRUNNER_MAX_RETRIES" default:"10"`
	RetryBaseDelay time.Duration `envconfig:"JOBRUNNER_RETRY_BASE_DELAY" default:"1m"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func loadConfig() (config *Config, err error) {
	defer errs.WrapWithFuncParams(&err)

	if os.Getenv("ENV") != "production" {
		err = godotenv.Load(".env")
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	config = new(Config)
	err = envconfig.Process("", config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) RetryPolicy() jobworkerdb.RetryPolicy {
	return jobworkerdb.RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryBaseDelay,
	}
}

func (c *Config) sqldbConfig() *sqldb.Config {
	return &sqldb.Config{
		Driver:   "postgres",
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		Database: c.PostgresDb,
		Extra:    map[string]string{"sslmode": c.PostgresSSLMode},
	}
}

// dataSourceName returns the URL of the database for database/sql
// with escaped credentials.
func (c *Config) dataSourceName() string {
	return c.sqldbConfig().ConnectURL()
}

// connect sets the connection of github.com/domonda/go-sqldb/db
// and initializes the jobrunner service.
func connect(ctx context.Context, config *Config) (store *jobworkerdb.Store, err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	conn, err := pqconn.New(ctx, config.sqldbConfig())
	if err != nil {
		return nil, err
	}
	db.SetConn(conn)

	return jobworkerdb.InitJobRunner(ctx, config.RetryPolicy())
}

func migrate(ctx context.Context, config *Config) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	conn, err := sql.Open("postgres", config.dataSourceName())
	if err != nil {
		return err
	}
	defer conn.Close()

	return jobworkerdb.Migrate(ctx, conn)
}
