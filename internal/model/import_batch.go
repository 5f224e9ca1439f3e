package model

import (
	"time"

	"github.com/google/uuid"
)

// Import batch states.
const (
	BatchPending   = "pending"
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
)

// ImportBatch tracks one uploaded price list from upload to completion.
// ErrorReport holds the per-line error list as JSON; it is written once when
// the batch finishes and never updated afterwards.
type ImportBatch struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FileName string    `gorm:"not null"`
	Status   string    `gorm:"type:varchar(20);not null;default:'pending';index"`

	TotalProducts   int `gorm:"not null;default:0"`
	ChangedProducts int `gorm:"not null;default:0"`
	ErrorCount      int `gorm:"not null;default:0"`

	ErrorReport *string `gorm:"type:jsonb"`
	NotifyEmail *string
	UploadedBy  *uuid.UUID `gorm:"type:uuid"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (ImportBatch) TableName() string { return "import_batches" }
