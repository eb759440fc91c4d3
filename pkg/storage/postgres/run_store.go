package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"harvester/pkg/models"
	"harvester/pkg/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to Postgres and migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	store, err := NewStore(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return store, nil
}

// NewStore opens any gorm dialector and migrates the schema.
func NewStore(dialector gorm.Dialector) (*PostgresStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.RunRecord{}, &models.JobResultRecord{}, &models.Policy{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun persists a run and its results in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID == uuid.Nil {
		return errors.New("run id is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", mapPgError(err))
	}
	return nil
}

// mapPgError turns constraint violations into storage sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, pgErr.ConstraintName)
	default:
		return err
	}
}

// GetRun retrieves a run with results in registration order.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error) {
	var run models.RunRecord
	result := s.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		First(&run, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", result.Error)
	}
	return &run, nil
}

// ListRuns returns recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var runs []models.RunRecord
	result := s.db.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Find(&runs)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %w", result.Error)
	}
	return runs, nil
}
