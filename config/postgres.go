package config

import (
	"context"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

// InitPostgres opens the gorm handle. With POSTGRES_DRIVER=postgres the
// connection goes through lib/pq instead of pgx.
func InitPostgres(s *Settings, log *logrus.Logger) error {
	if s.PostgresURI == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}

	dialector := postgres.Open(s.PostgresURI)
	if s.PostgresDriver == "postgres" {
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: s.PostgresURI})
	}

	level := gormlogger.Silent
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Connection Pooling settings
	sqlDB.SetMaxIdleConns(s.MaxIdleConns)
	sqlDB.SetMaxOpenConns(s.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	PostgresDB = db
	return nil
}
