package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// UploadImportRequest carries the non-file fields of the multipart upload.
type UploadImportRequest struct {
	NotifyEmail string `form:"notify_email" validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// ImportErrorLine is one rejected row in a batch report.
type ImportErrorLine struct {
	Line    int    `json:"line"`
	Product string `json:"product,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ImportBatchResponse struct {
	ID              string            `json:"id"`
	FileName        string            `json:"file_name"`
	Status          string            `json:"status"`
	TotalProducts   int               `json:"total_products"`
	ChangedProducts int               `json:"changed_products"`
	ErrorCount      int               `json:"error_count"`
	Errors          []ImportErrorLine `json:"errors,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
}

type ImportBatchListResponse struct {
	Data       []ImportBatchResponse `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}
