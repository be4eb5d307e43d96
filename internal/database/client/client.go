package client

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client держит пул соединений с базой метаданных (PostgreSQL или SQLite)
type Client struct {
	DB     *sqlx.DB
	logger *slog.Logger
}

// NewClient открывает соединение, проверяет его и применяет миграции
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	return Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
}

// Open подключается к базе указанного драйвера и применяет встроенные миграции
func Open(driver, dsn string, logger *slog.Logger) (*Client, error) {
	start := time.Now()

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		logger.Error("failed to open database connection", "driver", driver, "error", err)
		return nil, fmt.Errorf("ошибка открытия соединения с БД: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// SQLite допускает одного писателя
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err = db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	if err := applyMigrations(db, driver, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при применении миграций: %w", err)
	}

	logger.Info("database connection established successfully",
		"driver", driver,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Client{DB: db, logger: logger}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// applyMigrations применяет все доступные миграции к бд.
// Мигратор не закрывается: его Close закрыл бы и общий *sql.DB.
func applyMigrations(db *sqlx.DB, driver string, logger *slog.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("не удалось открыть встроенные миграции: %w", err)
	}

	var target database.Driver
	switch driver {
	case DriverPostgres:
		target, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	default:
		return fmt.Errorf("неизвестный драйвер БД %q", driver)
	}
	if err != nil {
		return fmt.Errorf("не удалось создать драйвер миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("не удалось создать экземпляр мигратора: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("migrations are up to date")
	case err != nil:
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	default:
		logger.Info("migrations applied successfully")
	}
	return nil
}

func (c *Client) Close() error {
	start := time.Now()
	err := c.DB.Close()
	if err != nil {
		c.logger.Error("failed to close database connection", "error", err)
		return err
	}
	c.logger.Info("database connection closed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
