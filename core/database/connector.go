package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned by every operation on a connector whose
// pool construction failed or that has been closed. Callers must get an
// explicit error instead of a silent no-op.
var ErrNotInitialized = errors.New("database: connector not initialized")

// UpsertStyle is the capability a connector exposes so callers can pick
// an atomic insert-or-update statement without sniffing the backend.
type UpsertStyle int

const (
	// UpsertDuplicateKey uses INSERT ... ON DUPLICATE KEY UPDATE (MySQL family).
	UpsertDuplicateKey UpsertStyle = iota
	// UpsertReplace uses INSERT OR REPLACE INTO (SQLite family).
	UpsertReplace
	// UpsertFallback has no single-statement upsert; callers run UPDATE
	// and fall back to INSERT when no rows were affected.
	UpsertFallback
)

// Connector owns a bounded connection pool for one database backend and
// hands out connections in a scoped borrow-then-return pattern.
type Connector interface {
	// WithConn obtains one pooled connection, invokes fn with it, and
	// returns the connection to the pool on every exit path, including a
	// panicking fn. Returns ErrNotInitialized when the pool is unusable.
	WithConn(ctx context.Context, fn func(*sql.Conn) error) error

	// Initialized reports whether pool construction succeeded and the
	// connector has not been closed.
	Initialized() bool

	// UpsertStyle reports the backend's atomic upsert capability.
	UpsertStyle() UpsertStyle

	// Dialect is the backend name (mysql, sqlite), used for schema
	// inspection statements only, never for upsert selection.
	Dialect() string

	// Close drains and disposes the pool. Idempotent, safe to call on a
	// connector that never initialized.
	Close() error
}

type pool struct {
	mu             sync.Mutex
	db             *sql.DB
	initialized    bool
	style          UpsertStyle
	dialect        string
	acquireTimeout time.Duration
	log            *zap.Logger
}

// Open builds a connector for the configured driver. On failure the
// returned connector is permanently disabled (Initialized() == false)
// and the error describes why; callers may keep the disabled connector
// and will receive ErrNotInitialized from every operation.
func Open(cfg Config, log *zap.Logger) (Connector, error) {
	switch cfg.Driver {
	case "mysql":
		return openMySQL(cfg, log)
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return &pool{log: log, dialect: cfg.Driver, style: UpsertFallback},
			fmt.Errorf("database: unknown driver %q", cfg.Driver)
	}
}

func openMySQL(cfg Config, log *zap.Logger) (Connector, error) {
	// Special characters in the password must be URL encoded for the
	// mysql DSN; url.UserPassword handles that.
	userInfo := url.UserPassword(cfg.User, cfg.Password).String()

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	dsn := fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		userInfo, cfg.Host, cfg.Port, cfg.Name, timeout, timeout, timeout)

	p := &pool{style: UpsertDuplicateKey, dialect: "mysql", log: log}
	err := p.init("mysql", dsn, cfg)
	return p, err
}

func openSQLite(cfg Config, log *zap.Logger) (Connector, error) {
	p := &pool{style: UpsertReplace, dialect: "sqlite", log: log}
	err := p.init("sqlite", cfg.File, cfg)
	return p, err
}

// NewWithDB wraps an already-open *sql.DB. Used by tests and by
// embedders that manage their own pool construction.
func NewWithDB(db *sql.DB, style UpsertStyle, dialect string, log *zap.Logger) Connector {
	return &pool{
		db:             db,
		initialized:    true,
		style:          style,
		dialect:        dialect,
		acquireTimeout: 10 * time.Second,
		log:            log,
	}
}

func (p *pool) init(driver, dsn string, cfg Config) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		p.log.Error("Failed to open database pool", zap.String("driver", driver), zap.Error(err))
		return fmt.Errorf("database: failed to open pool: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 16
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		p.log.Error("Failed to ping database", zap.String("driver", driver), zap.Error(err))
		return fmt.Errorf("database: failed to ping: %w", err)
	}

	acquire := cfg.AcquireTimeoutSeconds
	if acquire <= 0 {
		acquire = 10
	}

	p.mu.Lock()
	p.db = db
	p.initialized = true
	p.acquireTimeout = time.Duration(acquire) * time.Second
	p.mu.Unlock()

	p.log.Info("Database pool ready",
		zap.String("driver", driver),
		zap.Int("max_open", maxOpen),
		zap.Int("max_idle", maxIdle))
	return nil
}

func (p *pool) WithConn(ctx context.Context, fn func(*sql.Conn) error) error {
	p.mu.Lock()
	db := p.db
	ok := p.initialized
	timeout := p.acquireTimeout
	p.mu.Unlock()

	if !ok || db == nil {
		return ErrNotInitialized
	}

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := db.Conn(acquireCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("database: failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(conn)
}

func (p *pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *pool) UpsertStyle() UpsertStyle { return p.style }

func (p *pool) Dialect() string { return p.dialect }

func (p *pool) Close() error {
	p.mu.Lock()
	db := p.db
	p.db = nil
	p.initialized = false
	p.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}
