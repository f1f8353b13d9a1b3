package models

import (
	"fmt"
	"time"

	"github.com/huangang/studyhub/internal/config"
	applog "github.com/huangang/studyhub/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

var dialectors = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   sqlite.Open,
	"mysql":    mysql.Open,
	"postgres": postgres.Open,
}

// gormWriter sends gorm's own log lines (slow queries, errors) to zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	applog.Warn().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger(mode string) gormlogger.Interface {
	level := gormlogger.Warn
	if mode == "debug" {
		level = gormlogger.Info
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// InitDB opens the configured database. Driver errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey on every driver.
func InitDB(cfg *config.DatabaseConfig, mode string) error {
	open, ok := dialectors[cfg.Driver]
	if !ok {
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(open(cfg.DSN), &gorm.Config{
		Logger:         newGormLogger(mode),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if cfg.Driver == "sqlite" {
		// one writer avoids "database is locked" under concurrent requests
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	DB = db
	return nil
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Study{},
		&Membership{},
		&Application{},
		&Post{},
		&Comment{},
		&StudySession{},
		&Attendance{},
		&AttendanceChangeLog{},
		&StudyFile{},
		&Notification{},
		&RefreshToken{},
		&EmailVerification{},
		&PasswordResetToken{},
		&SystemLog{},
		&SchedulerLock{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}
