package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/storage/database/migrations"
)

const (
	pingAttempts = 30
	pingStep     = 100 * time.Millisecond
)

// dsn builds the connection URL for `dbName`, as the admin role when `admin` is set and one is configured.
func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func connect(ctx context.Context, driver, dataSource string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dataSource)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the application database and waits until it answers.
// Payment application holds a row lock per open transaction, so the pool is bounded.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := connect(context.Background(), conf.Database.Engine, dsn(conf.Database.Name, false, conf))
	if err != nil {
		return nil, err
	}
	if n := conf.Database.MaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// OpenURL connects to a database given as a full connection URL, e.g. TEST_DATABASE_URL.
func OpenURL(rawURL string) (*sqlx.DB, error) {
	return connect(context.Background(), "postgres", rawURL)
}

// ping waits for the database to be ready, 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempt) * pingStep):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.GetContext(ctx, &found, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// CreateIfNotExist creates the application role (as the admin role) and then
// the application database (as the application role), skipping whatever already exists.
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()
	dbConf := conf.Database

	admin, err := connect(ctx, dbConf.Engine, dsn("postgres", true, conf))
	if err != nil {
		return err
	}
	defer func() { _ = admin.Close() }()

	if dbConf.User != "" {
		found, err := exists(ctx, admin, `SELECT true FROM pg_roles WHERE rolname = $1`, dbConf.User)
		if err != nil {
			return errors.Wrap(err, "checking app user")
		}
		if !found {
			q := "CREATE USER " + pq.QuoteIdentifier(dbConf.User) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbConf.Password)
			if _, err = admin.ExecContext(ctx, q); err != nil {
				return errors.Wrap(err, "creating app user")
			}
		}
	}

	app, err := connect(ctx, dbConf.Engine, dsn("postgres", false, conf))
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	found, err := exists(ctx, app, `SELECT true FROM pg_database WHERE datname = $1`, dbConf.Name)
	if err != nil {
		return errors.Wrap(err, "checking database")
	}
	if !found {
		if _, err = app.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbConf.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// Migrate runs a goose command ("up", "down", "status", "redo", "reset", ...) with the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, ".", args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
