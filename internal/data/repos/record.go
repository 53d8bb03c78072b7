package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

// RecordListFilter scopes ListByOwner. Date bounds apply to created_at,
// inclusive. Effective-status filtering happens in the service layer because
// it is time-derived, not a storage predicate.
type RecordListFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

type RecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *domain.Record) (*domain.Record, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Record, error)
	GetByIDForOwner(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*domain.Record, error)
	GetByPublicToken(ctx context.Context, tx *gorm.DB, token string) (*domain.Record, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter RecordListFilter) ([]*domain.Record, int64, error)
	UpdateArtifactURLs(ctx context.Context, tx *gorm.DB, id uuid.UUID, qrURL, pdfURL *string) error
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	IncrementScans(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CountByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, since *time.Time) (int64, error)
	IDsByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]uuid.UUID, error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	repoLog := baseLog.With("repo", "RecordRepo")
	return &recordRepo{db: db, log: repoLog}
}

func (r *recordRepo) Create(ctx context.Context, tx *gorm.DB, record *domain.Record) (*domain.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *recordRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Record
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *recordRepo) GetByIDForOwner(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*domain.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Record
	if err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *recordRepo) GetByPublicToken(ctx context.Context, tx *gorm.DB, token string) (*domain.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Record
	if err := transaction.WithContext(ctx).
		Where("public_token = ?", token).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *recordRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter RecordListFilter) ([]*domain.Record, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("user_id = ?", ownerID)
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var results []*domain.Record
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *recordRepo) UpdateArtifactURLs(ctx context.Context, tx *gorm.DB, id uuid.UUID, qrURL, pdfURL *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"qr_code_url": qrURL,
			"pdf_url":     pdfURL,
		}).Error
}

func (r *recordRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// IncrementScans bumps total_scans in a single UPDATE so concurrent scans of
// the same record never lose updates.
func (r *recordRepo) IncrementScans(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_scans":  gorm.Expr("total_scans + ?", 1),
			"last_scan_at": at,
		}).Error
}

func (r *recordRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Record{}).Error
}

func (r *recordRepo) CountByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, since *time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("user_id = ?", ownerID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *recordRepo) IDsByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&domain.Record{}).
		Where("user_id = ?", ownerID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
