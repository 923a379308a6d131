package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tablebot/config"
	"tablebot/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ArchiveService keeps a permanent history of published events. Help
// requests leave the queue when completed; the archive is where they can
// still be looked up.
type ArchiveService struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenArchive connects to MySQL and migrates the history table.
func OpenArchive(cfg *config.Config, log *zap.Logger) (*ArchiveService, error) {
	db, err := gorm.Open(mysql.Open(cfg.DBConnectionString), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("archive connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return NewArchiveService(db, log), nil
}

// NewArchiveService wraps an open gorm handle.
func NewArchiveService(db *gorm.DB, log *zap.Logger) *ArchiveService {
	return &ArchiveService{
		db:  db,
		log: log.With(zap.String("component", "archive")),
	}
}

// Record stores e. Redelivered events are ignored by event id.
func (a *ArchiveService) Record(ctx context.Context, e models.Event) {
	row := models.NewEventRecord(e)
	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		a.log.Error("archive event", zap.String("event_id", e.ID), zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// HistoryFilter narrows History.
type HistoryFilter struct {
	ParticipantID string
	RequestID     string
	Type          models.EventType
	Limit         int
}

// History returns archived events, newest first.
func (a *ArchiveService) History(ctx context.Context, f HistoryFilter) ([]models.EventRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := a.db.WithContext(ctx).Model(&models.EventRecord{})
	if f.ParticipantID != "" {
		query = query.Where("participant_id = ?", f.ParticipantID)
	}
	if f.RequestID != "" {
		query = query.Where("request_id = ?", f.RequestID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}

	var records []models.EventRecord
	if err := query.Order("at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the connection pool.
func (a *ArchiveService) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
