package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceChangeResponse struct {
	ID         string          `json:"id"`
	PriceID    string          `json:"price_id"`
	BatchID    *string         `json:"batch_id"`
	Kind       string          `json:"kind"`
	Action     string          `json:"action"`
	PriceAfter decimal.Decimal `json:"price_after"`
	CostAfter  decimal.Decimal `json:"cost_after"`
	FromDate   time.Time       `json:"from_date"`
	ToDate     *time.Time      `json:"to_date"`
	Line       int             `json:"line"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PriceChangeListResponse struct {
	Data       []PriceChangeResponse `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}
