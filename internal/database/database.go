package database

import (
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Databases holds the write connection and the read-only connection used for
// catalog lookups. Reader falls back to Writer when no replica is configured.
type Databases struct {
	Writer *gorm.DB
	Reader *gorm.DB
}

// Connect establishes the database connections
func Connect(cfg config.DatabaseConfig) (*Databases, error) {
	writer, err := open(cfg, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to write database")
	}

	reader := writer
	if cfg.ReadOnlyDSN != "" {
		reader, err = open(cfg, cfg.ReadOnlyDSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to read-only database")
		}
	}

	return &Databases{Writer: writer, Reader: reader}, nil
}

// Migrate runs the schema migrations on the write database
func (d *Databases) Migrate() error {
	return models.SetupModels(d.Writer)
}

// Close closes both connections
func (d *Databases) Close() error {
	if d.Reader != d.Writer {
		if err := closeDB(d.Reader); err != nil {
			log.Warn().Err(err).Msg("Failed to close read-only database")
		}
	}
	return closeDB(d.Writer)
}

// GormConfig returns the gorm settings shared by every connection. Driver
// errors are translated so duplicate keys surface as gorm.ErrDuplicatedKey.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Error
	if debug {
		level = logger.Info
	}
	return &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: logger.New(
			&logAdapter{},
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

func open(cfg config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(cfg.Debug))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// logAdapter routes gorm's logger through zerolog
type logAdapter struct{}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	log.Info().Str("component", "gorm").Msgf(format, args...)
}
