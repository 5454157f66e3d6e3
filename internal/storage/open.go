package storage

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xaenox/astro-bot/pkg/config"
)

//go:embed migrations
var migrations embed.FS

// Open returns the storage backend selected by cfg.Driver. SQL backends are
// migrated to the latest schema before they are returned.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory storage")
		return NewMemoryStorage(), nil
	case "postgres":
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
		return OpenPostgres(cfg, logger)
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		return OpenSQLite(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func OpenPostgres(cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		closeQuietly(db, logger)
		return nil, fmt.Errorf("error creating postgres migration driver: %w", err)
	}
	if err := applyMigrations("postgres", driver, logger); err != nil {
		closeQuietly(db, logger)
		return nil, err
	}

	return NewSQLStorage(db, logger), nil
}

func OpenSQLite(path string, logger *zap.Logger) (*SQLStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		closeQuietly(db, logger)
		return nil, fmt.Errorf("error creating sqlite migration driver: %w", err)
	}
	if err := applyMigrations("sqlite", driver, logger); err != nil {
		closeQuietly(db, logger)
		return nil, err
	}

	return NewSQLStorage(db, logger), nil
}

func applyMigrations(dialect string, driver database.Driver, logger *zap.Logger) error {
	source, err := iofs.New(migrations, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("error reading migrations: %w", err)
	}
	// The migrator is not closed: that would close the shared *sql.DB.
	defer source.Close()

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}

	start := time.Now()
	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No database migrations to apply", zap.String("dialect", dialect))
			return nil
		}
		return fmt.Errorf("error applying migrations: %w", err)
	}

	version, dirty, _ := migrator.Version()
	logger.Info("Database migrations applied",
		zap.String("dialect", dialect),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Duration("took", time.Since(start)))
	return nil
}

func closeQuietly(db interface{ Close() error }, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}
}
