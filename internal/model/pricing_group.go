package model

import (
	"time"

	"github.com/google/uuid"
)

// PricingGroup classifies prices for customer-specific pricing. Codes come
// from import documents; ExternalID is the stable identifier resolved through
// the classification service.
type PricingGroup struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code       string    `gorm:"uniqueIndex;not null"`
	Name       string    `gorm:"not null"`
	ExternalID string    `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (PricingGroup) TableName() string { return "pricing_groups" }
