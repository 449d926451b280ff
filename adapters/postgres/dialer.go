package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"qcgallery/internal/config"
	"qcgallery/internal/conn"
	"qcgallery/internal/credentials"
	"qcgallery/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBSource yields a live database handle. *conn.Connection[*sqlx.DB] is the
// production implementation.
type DBSource interface {
	EnsureValid(ctx context.Context) (*sqlx.DB, error)
}

// StaticSource serves one fixed handle, for tests and tools.
type StaticSource struct {
	DB *sqlx.DB
}

func (s StaticSource) EnsureValid(context.Context) (*sqlx.DB, error) {
	return s.DB, nil
}

// poolSettings keeps pooled connections inside the credential window: the
// token is only checked when a physical connection is opened.
func poolSettings(db *sqlx.DB, lifetime time.Duration) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(lifetime)
}

// NewMetadataConnection returns a lazily-issued connection to the relational
// metadata store. The OAuth access token is the Postgres password.
func NewMetadataConnection(cfg config.MetadataConfig, issuer credentials.Issuer, cc config.ConnectionConfig, opts conn.Options) *conn.Connection[*sqlx.DB] {
	acquire := func(ctx context.Context) (*sqlx.DB, error) {
		tok, err := issuer.Token(ctx)
		if err != nil {
			return nil, err
		}
		connector, err := pq.NewConnector(metadataDSN(cfg, tok.AccessToken, cc.ConnectTimeout))
		if err != nil {
			return nil, errors.Wrap(err, "invalid metadata store DSN")
		}
		db := sqlx.NewDb(sql.OpenDB(connector), "postgres")
		if err := ping(ctx, db, opts.Name); err != nil {
			return nil, err
		}
		poolSettings(db, cc.Lifetime)
		return db, nil
	}
	return conn.New(acquire, closeDB, opts)
}

// NewRecordsConnection returns a lazily-issued connection to the analytical
// query engine. {token} in the DSN is replaced with the access token.
func NewRecordsConnection(cfg config.RecordsConfig, issuer credentials.Issuer, cc config.ConnectionConfig, opts conn.Options) *conn.Connection[*sqlx.DB] {
	acquire := func(ctx context.Context) (*sqlx.DB, error) {
		tok, err := issuer.Token(ctx)
		if err != nil {
			return nil, err
		}
		dsn := strings.ReplaceAll(cfg.DSN, "{token}", url.QueryEscape(tok.AccessToken))
		db, err := sqlx.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s driver", cfg.Driver)
		}
		if err := ping(ctx, db, opts.Name); err != nil {
			return nil, err
		}
		poolSettings(db, cc.Lifetime)
		return db, nil
	}
	return conn.New(acquire, closeDB, opts)
}

func metadataDSN(cfg config.MetadataConfig, password string, timeout time.Duration) string {
	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"dbname=" + quoteDSN(cfg.Database),
		"user=" + quoteDSN(cfg.User),
		"password=" + quoteDSN(password),
		"sslmode=" + quoteDSN(cfg.SSLMode),
	}
	if timeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(timeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a key/value DSN value as libpq expects.
func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func ping(ctx context.Context, db *sqlx.DB, store string) error {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return classifyConnectError(store, err)
	}
	return nil
}

// classifyConnectError maps SQLSTATE class 28 (invalid authorization) to
// AuthFailure; everything else means the store could not be reached.
func classifyConnectError(store string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "28" {
		return errors.AuthFailure(store, err)
	}
	return errors.Unreachable(store, err)
}

func closeDB(db *sqlx.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
