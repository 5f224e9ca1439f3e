package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price kinds as persisted in product_prices.kind.
const (
	PriceKindFixed = "fixed"
	PriceKindUnit  = "unit"
)

// ProductPrice is one persisted price of a product. Unit prices of a product
// never overlap in time; fixed prices may coexist, one flagged as default.
// ToDate nil means the price is open-ended.
type ProductPrice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind      string    `gorm:"type:varchar(10);not null;index"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Cost      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Markup is derived from cost, price and the product tax rate on every write.
	Markup      decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0"`
	MaxDiscount decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	FromDate    time.Time       `gorm:"not null;index"`
	ToDate      *time.Time
	IsDefault   bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Groups []PricingGroup `gorm:"many2many:product_price_groups"`
}

func (ProductPrice) TableName() string { return "product_prices" }
