package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"researchblog/internal/config"
	"researchblog/internal/models"
	"researchblog/internal/repository"
)

const (
	connectAttempts = 3
	connectWait     = 2 * time.Second
	maxOpenConns    = 10
)

// Stores bundles the repositories chosen by DB_DRIVER.
type Stores struct {
	Accounts repository.AccountRepository
	Posts    repository.PostRepository
	Close    func() error
}

// Open returns the stores for cfg.Driver: "postgres" or "memory".
func Open(ctx context.Context, cfg config.Database, log logrus.FieldLogger) (*Stores, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		mem := repository.NewMemory()
		return &Stores{Accounts: mem.Accounts(), Posts: mem.Posts(), Close: func() error { return nil }}, nil
	case "postgres", "":
		gdb, err := Connect(ctx, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		return &Stores{
			Accounts: repository.NewAccountRepository(gdb),
			Posts:    repository.NewPostRepository(gdb),
			Close:    sqlDB.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
}

// Connect opens postgres, retrying the first connection, and migrates the schema.
func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var gdb *gorm.DB
	attempt := 0
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewConstant(connectWait))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		gdb, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("database connection failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
	}
	log.Info("Database connection established")

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	log.Info("Database migration completed")
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.Account{}, &models.Post{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
