package worker

// import_worker.go
// Processes price list batches from QueueImports. Large uploads land here so
// the HTTP request returns immediately; the batch file waits on disk until a
// worker picks it up.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/importer"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

// ImportJobPayload is the job envelope sent to QueueImports.
type ImportJobPayload struct {
	BatchID string `json:"batch_id"`
}

// ImportWorker runs queued import batches through the shared pipeline.
type ImportWorker struct {
	batches    repository.ImportBatchRepository
	pipeline   *importer.Pipeline
	dispatcher *Dispatcher
	rdb        *redis.Client
	uploadPath string
}

func NewImportWorker(
	batches repository.ImportBatchRepository,
	pipeline *importer.Pipeline,
	dispatcher *Dispatcher,
	rdb *redis.Client,
	uploadPath string,
) *ImportWorker {
	return &ImportWorker{
		batches:    batches,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		rdb:        rdb,
		uploadPath: uploadPath,
	}
}

// Process handles a single import job:
//  1. Parse ImportJobPayload from the job envelope
//  2. Load the batch and open its stored document
//  3. Run the pipeline (reconcile + apply + record outcome)
//  4. Enqueue the notification email when one was requested
func (w *ImportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ImportJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("import_worker: invalid payload")
		return
	}

	batchID, err := uuid.Parse(payload.BatchID)
	if err != nil {
		log.Error().Str("batch_id", payload.BatchID).Msg("import_worker: invalid batch_id")
		return
	}

	batch, err := w.batches.FindByID(ctx, batchID)
	if err != nil {
		log.Error().Err(err).Str("batch_id", payload.BatchID).Msg("import_worker: batch not found")
		return
	}
	if batch.Status != model.BatchPending {
		log.Warn().Str("batch_id", payload.BatchID).Str("status", batch.Status).
			Msg("import_worker: batch already processed, skipping")
		return
	}

	filePath := filepath.Join(w.uploadPath, batch.ID.String()+".csv")
	file, err := os.Open(filePath)
	if err != nil {
		log.Error().Err(err).Str("batch_id", payload.BatchID).Msg("import_worker: stored document missing")
		SendToDLQ(ctx, w.rdb, QueueImports, "import", raw, fmt.Sprintf("stored document missing: %v", err), 1)
		return
	}
	defer file.Close()

	outcome, err := w.pipeline.Run(ctx, batch, file)
	if err != nil {
		// Pipeline already marked the batch failed; keep the job around for
		// inspection since the cause was infrastructure, not the document.
		SendToDLQ(ctx, w.rdb, QueueImports, "import", raw, err.Error(), 1)
		return
	}

	// Document stays on disk only while the batch can still be re-run.
	if err := os.Remove(filePath); err != nil {
		log.Warn().Err(err).Str("batch_id", payload.BatchID).Msg("import_worker: could not remove stored document")
	}

	if batch.NotifyEmail != nil && *batch.NotifyEmail != "" {
		emailJob := ReportEmail(outcome.Batch, outcome.PDFPath)
		if err := w.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
			log.Warn().Err(err).Str("email", *batch.NotifyEmail).Msg("import_worker: failed to enqueue email")
		}
	}
}

// ReportEmail builds the notification for a finished batch. The synchronous
// upload path reuses it so both paths send identical mail.
func ReportEmail(batch *model.ImportBatch, pdfPath string) EmailJobPayload {
	to := ""
	if batch.NotifyEmail != nil {
		to = *batch.NotifyEmail
	}
	body := fmt.Sprintf(
		"Price list %s finished with status %s.\nProducts: %d\nChanged: %d\nRejected rows: %d\n",
		batch.FileName, batch.Status, batch.TotalProducts, batch.ChangedProducts, batch.ErrorCount,
	)
	return EmailJobPayload{
		ToEmail: to,
		Subject: fmt.Sprintf("Price list import finished: %s", batch.FileName),
		Body:    body,
		PDFPath: pdfPath,
	}
}
