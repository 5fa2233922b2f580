package dbmysql

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gochat/internal/config"
)

// NewDatabase opens the message store with the configured dialect and
// migrates the schema.
func NewDatabase(cnf *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cnf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(LogLevel(cnf.Logging.Level)),
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", cnf.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	sqlDB.SetMaxOpenConns(cnf.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cnf.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("✅ Connected to %s successfully", cnf.Database.Driver)

	return db, nil
}

func dialectorFor(cnf *config.Config) (gorm.Dialector, error) {
	switch cnf.Database.Driver {
	case "", "mysql":
		return mysql.Open(cnf.DSN()), nil
	case "postgres":
		return postgres.Open(cnf.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cnf.Database.Driver)
	}
}

// LogLevel maps LOG_LEVEL onto gorm's logger levels.
func LogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
