package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

type ImportBatchRepository interface {
	Create(ctx context.Context, b *model.ImportBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ImportBatch, error)
	List(ctx context.Context, page, limit int) ([]model.ImportBatch, int64, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	// MarkCompleted records the final counters and the JSON error report in one
	// update so a crash cannot leave a half-written outcome.
	MarkCompleted(ctx context.Context, id uuid.UUID, total, changed, errCount int, report *string) error
	MarkFailed(ctx context.Context, id uuid.UUID, report *string) error
}

type importBatchRepo struct{ db *gorm.DB }

func NewImportBatchRepository(db *gorm.DB) ImportBatchRepository { return &importBatchRepo{db: db} }

func (r *importBatchRepo) Create(ctx context.Context, b *model.ImportBatch) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *importBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ImportBatch, error) {
	var b model.ImportBatch
	err := r.db.WithContext(ctx).First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *importBatchRepo) List(ctx context.Context, page, limit int) ([]model.ImportBatch, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.ImportBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.ImportBatch
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *importBatchRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.ImportBatch{}).Where("id = ?", id).
		Update("status", model.BatchRunning).Error
}

func (r *importBatchRepo) MarkCompleted(ctx context.Context, id uuid.UUID, total, changed, errCount int, report *string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.ImportBatch{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           model.BatchCompleted,
			"total_products":   total,
			"changed_products": changed,
			"error_count":      errCount,
			"error_report":     report,
			"completed_at":     &now,
		}).Error
}

func (r *importBatchRepo) MarkFailed(ctx context.Context, id uuid.UUID, report *string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.ImportBatch{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.BatchFailed,
			"error_report": report,
			"completed_at": &now,
		}).Error
}
