package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

type PricingGroupRepository interface {
	FindByCodes(ctx context.Context, codes []string) ([]model.PricingGroup, error)
	List(ctx context.Context) ([]model.PricingGroup, error)
	// Upsert inserts or refreshes a group by its code. Used when syncing from
	// the external classification service.
	Upsert(ctx context.Context, g *model.PricingGroup) error
}

type pricingGroupRepo struct{ db *gorm.DB }

func NewPricingGroupRepository(db *gorm.DB) PricingGroupRepository {
	return &pricingGroupRepo{db: db}
}

func (r *pricingGroupRepo) FindByCodes(ctx context.Context, codes []string) ([]model.PricingGroup, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var groups []model.PricingGroup
	err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&groups).Error
	return groups, err
}

func (r *pricingGroupRepo) List(ctx context.Context) ([]model.PricingGroup, error) {
	var groups []model.PricingGroup
	err := r.db.WithContext(ctx).Order("code ASC").Find(&groups).Error
	return groups, err
}

func (r *pricingGroupRepo) Upsert(ctx context.Context, g *model.PricingGroup) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "external_id", "updated_at"}),
	}).Create(g).Error
}
