package config

import (
	"fmt"

	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLiteDSN = "file:restaurant.db?_foreign_keys=on&_busy_timeout=5000"

// InitDB opens the database selected by DB_DRIVER.
func InitDB(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for mysql")
		}
		dialector = mysql.Open(cfg.DBDSN)
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for postgres")
		}
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite", "":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	logLevel := logger.Warn
	if cfg.GinMode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" || cfg.DBDriver == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	utils.InfoLogger.WithField("driver", cfg.DBDriver).Info("Database connected")
	return db, nil
}
