package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/pricing"
)

// PriceRepository defines data access for product prices. The reconciliation
// view methods return pricing records rather than raw models so the engine
// stays decoupled from GORM.
type PriceRepository interface {
	// ExistingForProduct returns a product's own prices of one kind plus the
	// prices of every template linked to it, tagged with their true owner.
	ExistingForProduct(ctx context.Context, productID uuid.UUID, kind pricing.Kind) ([]*pricing.ExistingPrice, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductPrice, error)

	// Used inside import transactions — callers must pass the tx instance
	CreateTx(tx *gorm.DB, p *model.ProductPrice) error
	UpdateTx(tx *gorm.DB, p *model.ProductPrice) error
	FindTx(tx *gorm.DB, id uuid.UUID) (*model.ProductPrice, error)

	DB() *gorm.DB
}

type priceRepo struct{ db *gorm.DB }

func NewPriceRepository(db *gorm.DB) PriceRepository { return &priceRepo{db: db} }

func (r *priceRepo) ExistingForProduct(ctx context.Context, productID uuid.UUID, kind pricing.Kind) ([]*pricing.ExistingPrice, error) {
	owners := []uuid.UUID{productID}

	var templateIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.TemplateLink{}).
		Where("product_id = ?", productID).
		Pluck("template_id", &templateIDs).Error
	if err != nil {
		return nil, err
	}
	owners = append(owners, templateIDs...)

	var rows []model.ProductPrice
	err = r.db.WithContext(ctx).
		Where("product_id IN ? AND kind = ?", owners, string(kind)).
		Preload("Groups").
		Order("from_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	existing := make([]*pricing.ExistingPrice, 0, len(rows))
	for i := range rows {
		existing = append(existing, toExisting(&rows[i]))
	}
	return existing, nil
}

func (r *priceRepo) ListForProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductPrice, error) {
	var rows []model.ProductPrice
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Preload("Groups").
		Order("kind ASC, from_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *priceRepo) CreateTx(tx *gorm.DB, p *model.ProductPrice) error {
	return tx.Create(p).Error
}

func (r *priceRepo) UpdateTx(tx *gorm.DB, p *model.ProductPrice) error {
	return tx.Save(p).Error
}

func (r *priceRepo) FindTx(tx *gorm.DB, id uuid.UUID) (*model.ProductPrice, error) {
	var p model.ProductPrice
	err := tx.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *priceRepo) DB() *gorm.DB { return r.db }

// toExisting maps a persisted price into the reconciliation engine's view.
func toExisting(p *model.ProductPrice) *pricing.ExistingPrice {
	groups := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		groups = append(groups, g.Code)
	}
	from := p.FromDate
	return &pricing.ExistingPrice{
		PriceRecord: pricing.PriceRecord{
			ID:          p.ID,
			Kind:        pricing.Kind(p.Kind),
			Price:       p.Price,
			Cost:        p.Cost,
			MaxDiscount: p.MaxDiscount,
			From:        &from,
			To:          p.ToDate,
			Default:     p.IsDefault,
			Groups:      groups,
		},
		OwnerID: p.ProductID,
	}
}
