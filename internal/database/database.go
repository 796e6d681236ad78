// File: internal/database/database.go
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-livechat/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the SQL engine behind the durable store.
type Options struct {
	Driver       string
	DSN          string
	LogLevel     gormlogger.LogLevel
	MaxOpenConns int
}

// activeVisitorIndex keeps at most one active conversation per visitor. Both
// SQLite and PostgreSQL accept partial indexes with this syntax.
const activeVisitorIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active_visitor
ON conversations (visitor_id) WHERE status = 'active'`

// Open connects to the configured engine and runs migrations.
func Open(opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	level := opts.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = "livechat.db"
		}
		return sqlite.Open(withSQLitePragmas(dsn)), nil
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return postgres.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// withSQLitePragmas turns on foreign keys and a busy timeout unless the DSN
// already sets pragmas of its own.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate creates or updates the conversations, messages and operators tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Conversation{}, &domain.Message{}, &domain.Operator{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := db.Exec(activeVisitorIndex).Error; err != nil {
		return fmt.Errorf("create active visitor index: %w", err)
	}
	return nil
}
