// Package archive is the relational side of the news archive: schema,
// entity rows, scoped reads and the transactional soft delete that the
// cache coordinator pairs with invalidation.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrStoreUnavailable wraps every relational failure.
var ErrStoreUnavailable = errors.New("archive: store unavailable")

// AllCategories is the category value that selects every category.
const AllCategories = "所有分区"

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config selects and tunes the relational connection.
type Config struct {
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// DB is the archive repository.
type DB struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	cfg = cfg.withDefaults()
	switch cfg.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return nil, fmt.Errorf("archive: unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("archive: dsn required")
	}
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrStoreUnavailable, cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent soft deletes.
		db.SetMaxOpenConns(1)
	}
	return New(db, logger), nil
}

// New wraps an existing connection. The driver name is taken from db.
func New(db *sqlx.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{db: db, driver: db.DriverName(), logger: logger}
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Migrate creates the archive tables when they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaFor(d.driver) {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("migrate", err)
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
