package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price change actions recorded in the audit log.
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeClose  = "close"
)

// PriceChangeLog records every price mutation applied by an import.
// Records are immutable: they are never deleted or modified.
type PriceChangeLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index"`
	PriceID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	BatchID   *uuid.UUID `gorm:"type:uuid;index"`
	Kind      string     `gorm:"type:varchar(10);not null"`
	Action    string     `gorm:"type:varchar(10);not null"`

	PriceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CostAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	FromDate   time.Time       `gorm:"not null"`
	ToDate     *time.Time

	// Line is the source row in the uploaded document.
	Line      int `gorm:"not null;default:0"`
	CreatedAt time.Time

	Product Product `gorm:"foreignKey:ProductID"`
}

func (PriceChangeLog) TableName() string { return "price_change_logs" }
