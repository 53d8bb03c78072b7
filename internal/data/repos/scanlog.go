package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

type ScanLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, logs []*domain.ScanLog) ([]*domain.ScanLog, error)
	GetByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, limit int) ([]*domain.ScanLog, error)
	CountByRecordIDs(ctx context.Context, tx *gorm.DB, recordIDs []uuid.UUID) (int64, error)
	DeleteByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) error
}

type scanLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScanLogRepo(db *gorm.DB, baseLog *logger.Logger) ScanLogRepo {
	repoLog := baseLog.With("repo", "ScanLogRepo")
	return &scanLogRepo{db: db, log: repoLog}
}

func (r *scanLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*domain.ScanLog) ([]*domain.ScanLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(logs) == 0 {
		return []*domain.ScanLog{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *scanLogRepo) GetByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, limit int) ([]*domain.ScanLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 100
	}

	var results []*domain.ScanLog
	if err := transaction.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *scanLogRepo) CountByRecordIDs(ctx context.Context, tx *gorm.DB, recordIDs []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(recordIDs) == 0 {
		return 0, nil
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&domain.ScanLog{}).
		Where("record_id IN ?", recordIDs).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *scanLogRepo) DeleteByRecordID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("record_id = ?", recordID).
		Delete(&domain.ScanLog{}).Error
}
