// Package gormstore is the SQL resource backend, on GORM with SQLite or
// PostgreSQL.
//
// Reference counts change through conditional UPDATEs guarded by a
// (region, resource) membership table, so a count moves at most once per
// region however many workers report the same resource.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/offlinekit/internal/logger"
)

// Dialect names, as reported in logs and spans.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// slowQuery is the duration above which a statement is logged as a warning.
const slowQuery = 500 * time.Millisecond

// PostgresConfig locates a PostgreSQL database.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// Pool limits; zero keeps database/sql defaults.
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the libpq keyword/value connection string. Values are quoted
// so that passwords may contain spaces or quotes.
func (c PostgresConfig) DSN() string {
	var b strings.Builder
	kv := func(k, v string) {
		if v == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteDSN(v))
	}
	kv("host", c.Host)
	if c.Port > 0 {
		kv("port", strconv.Itoa(c.Port))
	}
	kv("user", c.User)
	kv("password", c.Password)
	kv("dbname", c.Database)
	kv("sslmode", c.SSLMode)
	return b.String()
}

func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Store implements resource.Backend on a SQL database.
type Store struct {
	db      *gorm.DB
	dialect string
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	// WAL lets readers run beside the writer; busy_timeout makes a second
	// writer wait instead of failing with SQLITE_BUSY.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return open(sqlite.Open(dsn), DialectSQLite, 0, 0)
}

// OpenPostgres connects to the database described by cfg.
func OpenPostgres(cfg PostgresConfig) (*Store, error) {
	switch {
	case cfg.Host == "":
		return nil, fmt.Errorf("postgres host is required")
	case cfg.Database == "":
		return nil, fmt.Errorf("postgres database is required")
	case cfg.User == "":
		return nil, fmt.Errorf("postgres user is required")
	}
	return open(postgres.Open(cfg.DSN()), DialectPostgres, cfg.MaxOpenConns, cfg.MaxIdleConns)
}

func open(d gorm.Dialector, dialect string, maxOpen, maxIdle int) (*Store, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s connection pool: %w", dialect, err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate %s schema: %w", dialect, err)
	}

	logger.Debug("SQL resource store opened", logger.KeyStoreType, dialect)
	return &Store{db: db, dialect: dialect}, nil
}

// Dialect returns DialectSQLite or DialectPostgres.
func (s *Store) Dialect() string {
	return s.dialect
}

// DB returns the GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter forwards GORM's messages to the process logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Warn("SQL store: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// newGormLogger reports slow statements and errors. Not-found lookups are
// normal control flow here and stay quiet.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
