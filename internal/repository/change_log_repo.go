package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

type ChangeLogRepository interface {
	// CreateTx writes a log entry inside the import transaction, so price
	// changes and their audit trail commit or roll back together.
	CreateTx(tx *gorm.DB, entry *model.PriceChangeLog) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.PriceChangeLog, int64, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]model.PriceChangeLog, error)
}

type changeLogRepo struct{ db *gorm.DB }

func NewChangeLogRepository(db *gorm.DB) ChangeLogRepository { return &changeLogRepo{db: db} }

func (r *changeLogRepo) CreateTx(tx *gorm.DB, entry *model.PriceChangeLog) error {
	return tx.Create(entry).Error
}

// ListByProduct returns paginated price-change records for one product,
// ordered newest-first (append-only table, so this reflects natural insert order).
func (r *changeLogRepo) ListByProduct(
	ctx context.Context,
	productID uuid.UUID,
	page, limit int,
) ([]model.PriceChangeLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.PriceChangeLog{}).
		Where("product_id = ?", productID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.PriceChangeLog
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *changeLogRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]model.PriceChangeLog, error) {
	var rows []model.PriceChangeLog
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Preload("Product").
		Find(&rows).Error
	return rows, err
}
