package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Name     string `form:"name"`
	Active   string `form:"active"`   // "true" (default) | "false" | "all"
	Template string `form:"template"` // "true" | "false"
	Page     int    `form:"page,default=1"  validate:"min=1"`
	Limit    int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PriceResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Markup      decimal.Decimal `json:"markup"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
	FromDate    time.Time       `json:"from_date"`
	ToDate      *time.Time      `json:"to_date"`
	IsDefault   bool            `json:"is_default"`
	Groups      []string        `json:"groups,omitempty"`
}

type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PrintedName *string         `json:"printed_name"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Template    bool            `json:"template"`
	Active      bool            `json:"active"`
	Prices      []PriceResponse `json:"prices,omitempty"`
}

type ProductListResponse struct {
	Data       []ProductResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}
