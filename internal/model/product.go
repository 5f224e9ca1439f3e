package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalogue entry whose prices are maintained through price list
// imports. PrintedName is the optional name used on customer documents.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"index;not null"`
	PrintedName *string
	// TaxRate is the product's tax percentage, used when deriving markup.
	TaxRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	// Template marks products that exist only to share prices with others.
	Template  bool `gorm:"not null;default:false"`
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Prices []ProductPrice `gorm:"foreignKey:ProductID"`
}

// TemplateLink attaches a price template to a product. Prices owned by the
// template show up on the product as linked, read-only entries.
type TemplateLink struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_template"`
	TemplateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_template"`
	CreatedAt  time.Time

	Template *Product `gorm:"foreignKey:TemplateID"`
}

func (TemplateLink) TableName() string { return "template_links" }
