package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docrefine/internal/common"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	MaxDocuments     int
}

// ConfigFrom maps the application database settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
		MaxDocuments:     c.MaxDocuments,
	}
}

// New returns the store selected by cfg.Driver.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (DocumentRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", common.DriverMemory:
		logger.Info("using in-memory document store", "max_documents", cfg.MaxDocuments)
		return NewMemoryRepository(cfg.MaxDocuments, logger), nil
	case common.DriverSQLite, common.DriverPostgres:
		repo, err := Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Open connects to sqlite or postgres, wraps the handle for ent's SQL builder and
// creates the documents table if needed.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", cfg.Driver)

	var (
		db          *sql.DB
		pool        *pgxpool.Pool
		dialectName string
	)
	switch cfg.Driver {
	case common.DriverPostgres:
		var err error
		pool, err = openPool(ctx, cfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
		}
		// Wrap pool as *sql.DB for the ent driver
		db = stdlib.OpenDBFromPool(pool)
		dialectName = dialectPostgres
	case common.DriverSQLite:
		var err error
		db, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open sqlite database", "error", err)
			return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
		}
		// A single connection keeps ":memory:" databases coherent and serializes writers.
		db.SetMaxOpenConns(1)
		dialectName = dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	r := &SQLRepository{
		drv:          entsql.OpenDB(dialectName, db),
		pool:         pool,
		dialect:      dialectName,
		maxDocuments: cfg.MaxDocuments,
		now:          time.Now,
		logger:       logger,
	}
	if err := r.migrate(ctx); err != nil {
		r.Close()
		logger.Error("failed to create schema", "error", err)
		return nil, fmt.Errorf("%w: migrate: %w", common.ErrDatabase, err)
	}

	logger.Info("successfully connected to database", "driver", cfg.Driver)
	return r, nil
}

const (
	dialectPostgres = dialect.Postgres
	dialectSQLite   = dialect.SQLite
)

func openPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docrefine"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schemaDDL = map[string][]string{
	dialectSQLite: {
		`CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	original_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	original_content TEXT NOT NULL,
	corrected_content TEXT,
	writing_style TEXT NOT NULL,
	grammar_count INTEGER,
	style_count INTEGER,
	clarity_count INTEGER,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
	},
	dialectPostgres: {
		`CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	original_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	original_content TEXT NOT NULL,
	corrected_content TEXT,
	writing_style TEXT NOT NULL,
	grammar_count INTEGER,
	style_count INTEGER,
	clarity_count INTEGER,
	status TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
	},
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, stmt := range schemaDDL[r.dialect] {
		if _, err := r.drv.DB().ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connections gracefully
func (r *SQLRepository) Close() error {
	r.logger.Info("closing database connections")
	var err error
	if r.drv != nil {
		if err = r.drv.Close(); err != nil {
			r.logger.Error("failed to close sql driver", "error", err)
		}
	}
	if r.pool != nil {
		r.pool.Close()
	}
	r.logger.Info("database connections closed")
	return err
}

// HealthCheck pings using database/sql to catch DSN issues early.
func (r *SQLRepository) HealthCheck(ctx context.Context, timeout time.Duration) error {
	r.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := r.drv.DB().PingContext(ctx); err != nil {
		r.logger.Error("database ping failed", "error", err)
		return fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	r.logger.Debug("database ping successful")
	return nil
}
