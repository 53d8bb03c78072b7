package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

type FormTemplateRepo interface {
	GetActive(ctx context.Context, tx *gorm.DB) (*domain.FormTemplate, error)
	Upsert(ctx context.Context, tx *gorm.DB, template *domain.FormTemplate) (*domain.FormTemplate, error)
}

type formTemplateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormTemplateRepo(db *gorm.DB, baseLog *logger.Logger) FormTemplateRepo {
	repoLog := baseLog.With("repo", "FormTemplateRepo")
	return &formTemplateRepo{db: db, log: repoLog}
}

func (r *formTemplateRepo) GetActive(ctx context.Context, tx *gorm.DB) (*domain.FormTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.FormTemplate
	if err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Order("version DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert replaces the active template of the same name with a newer version,
// deactivating the previous one.
func (r *formTemplateRepo) Upsert(ctx context.Context, tx *gorm.DB, template *domain.FormTemplate) (*domain.FormTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Model(&domain.FormTemplate{}).
			Where("name = ? AND active = ?", template.Name, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return inner.Create(template).Error
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}
