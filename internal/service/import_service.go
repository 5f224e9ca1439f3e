package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/config"
	"github.com/Narimm/OpenVPMS-sub018/internal/dto"
	"github.com/Narimm/OpenVPMS-sub018/internal/importer"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
	"github.com/Narimm/OpenVPMS-sub018/internal/worker"
)

var (
	ErrBatchNotFound = errors.New("import batch not found")
	// ErrInvalidDocument signals the upload could not be parsed at all and no
	// batch was created for it.
	ErrInvalidDocument = errors.New("invalid price list document")
)

// ImportService receives uploaded price lists and drives them through the
// reconciliation pipeline. Small files run inside the request; larger ones
// are stored and queued to the worker pool.
type ImportService interface {
	Upload(ctx context.Context, fileName string, src io.Reader, notifyEmail string, uploadedBy *uuid.UUID) (*dto.ImportBatchResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ImportBatchResponse, error)
	List(ctx context.Context, page, limit int) (*dto.ImportBatchListResponse, error)
}

type importService struct {
	batches    repository.ImportBatchRepository
	pipeline   *importer.Pipeline
	dispatcher *worker.Dispatcher
	cfg        *config.Config
}

func NewImportService(
	batches repository.ImportBatchRepository,
	pipeline *importer.Pipeline,
	dispatcher *worker.Dispatcher,
	cfg *config.Config,
) ImportService {
	return &importService{batches: batches, pipeline: pipeline, dispatcher: dispatcher, cfg: cfg}
}

func (s *importService) Upload(ctx context.Context, fileName string, src io.Reader, notifyEmail string, uploadedBy *uuid.UUID) (*dto.ImportBatchResponse, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	// Parse up front so a document with a broken header or unreadable dates
	// is rejected before a batch exists for it.
	doc, err := importer.NewReader().Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	batch := &model.ImportBatch{
		FileName:   fileName,
		Status:     model.BatchPending,
		UploadedBy: uploadedBy,
	}
	if notifyEmail != "" {
		batch.NotifyEmail = &notifyEmail
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	if len(doc.Products) <= s.cfg.SyncImportLimit {
		outcome, err := s.pipeline.Run(ctx, batch, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if batch.NotifyEmail != nil && *batch.NotifyEmail != "" {
			emailJob := worker.ReportEmail(outcome.Batch, outcome.PDFPath)
			if err := s.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
				log.Warn().Err(err).Str("email", notifyEmail).Msg("import: failed to enqueue email")
			}
		}
		resp := batchResponse(outcome.Batch)
		resp.Errors = outcome.Report
		return &resp, nil
	}

	// Too large for the request path: persist the document and hand the
	// batch to the worker pool.
	if err := s.storeDocument(batch.ID, data); err != nil {
		report := err.Error()
		_ = s.batches.MarkFailed(ctx, batch.ID, &report)
		return nil, err
	}
	job := worker.ImportJobPayload{BatchID: batch.ID.String()}
	if err := s.dispatcher.EnqueueImport(ctx, job); err != nil {
		report := err.Error()
		_ = s.batches.MarkFailed(ctx, batch.ID, &report)
		return nil, err
	}

	log.Info().
		Str("batch_id", batch.ID.String()).
		Int("products", len(doc.Products)).
		Msg("import: batch queued")

	resp := batchResponse(batch)
	return &resp, nil
}

func (s *importService) storeDocument(batchID uuid.UUID, data []byte) error {
	if err := os.MkdirAll(s.cfg.UploadStoragePath, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadStoragePath, batchID.String()+".csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

func (s *importService) Get(ctx context.Context, id uuid.UUID) (*dto.ImportBatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	resp := batchResponse(batch)
	if batch.ErrorReport != nil {
		if err := json.Unmarshal([]byte(*batch.ErrorReport), &resp.Errors); err != nil {
			log.Warn().Err(err).Str("batch_id", id.String()).Msg("import: malformed error report")
		}
	}
	return &resp, nil
}

func (s *importService) List(ctx context.Context, page, limit int) (*dto.ImportBatchListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 20
	}

	batches, total, err := s.batches.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	data := make([]dto.ImportBatchResponse, len(batches))
	for i := range batches {
		data[i] = batchResponse(&batches[i])
	}

	return &dto.ImportBatchListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func batchResponse(b *model.ImportBatch) dto.ImportBatchResponse {
	return dto.ImportBatchResponse{
		ID:              b.ID.String(),
		FileName:        b.FileName,
		Status:          b.Status,
		TotalProducts:   b.TotalProducts,
		ChangedProducts: b.ChangedProducts,
		ErrorCount:      b.ErrorCount,
		CreatedAt:       b.CreatedAt,
		CompletedAt:     b.CompletedAt,
	}
}
