package importer

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/dto"
	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/pricing"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

// repoView adapts the price repository to the reconciler's read interface.
type repoView struct {
	prices repository.PriceRepository
}

func (v repoView) PricesForProduct(ctx context.Context, productID uuid.UUID, kind pricing.Kind) ([]*pricing.ExistingPrice, error) {
	return v.prices.ExistingForProduct(ctx, productID, kind)
}

// Outcome is what a finished batch run produces. Batch carries the final
// status and counters; PDFPath is set when a report document was generated.
type Outcome struct {
	Batch   *model.ImportBatch
	Report  []dto.ImportErrorLine
	PDFPath string
}

// Pipeline runs one import batch end to end: parse the document, reconcile
// every product against the stored prices, persist the resulting changes and
// record the outcome on the batch. Both the synchronous upload path and the
// worker pool funnel through here.
type Pipeline struct {
	batches    repository.ImportBatchRepository
	reader     *Reader
	reconciler *pricing.BatchReconciler
	applier    *ChangeApplier
	pdfPath    string
}

func NewPipeline(
	batches repository.ImportBatchRepository,
	products repository.ProductRepository,
	prices repository.PriceRepository,
	logs repository.ChangeLogRepository,
	groups repository.PricingGroupRepository,
	pdfStoragePath string,
) *Pipeline {
	return &Pipeline{
		batches:    batches,
		reader:     NewReader(),
		reconciler: pricing.NewBatchReconciler(products, pricing.NewReconciler(repoView{prices: prices})),
		applier:    NewChangeApplier(products, prices, logs, groups),
		pdfPath:    pdfStoragePath,
	}
}

// Run processes a batch. Data problems (unreadable document, rejected rows)
// end in a completed or failed batch and a nil error; a non-nil error means an
// infrastructure failure after the batch was marked failed.
func (p *Pipeline) Run(ctx context.Context, batch *model.ImportBatch, src io.Reader) (*Outcome, error) {
	if err := p.batches.MarkRunning(ctx, batch.ID); err != nil {
		return nil, err
	}
	batch.Status = model.BatchRunning

	doc, err := p.reader.Read(src)
	if err != nil {
		// The document as a whole is unusable (bad header, no parseable
		// dates). Not an infrastructure failure.
		p.markFailed(ctx, batch, err.Error())
		return &Outcome{Batch: batch}, nil
	}

	result, err := p.reconciler.ReconcileAll(ctx, doc.Products)
	if err != nil {
		p.markFailed(ctx, batch, err.Error())
		return nil, err
	}

	for _, set := range result.Changed {
		if err := p.applier.Apply(ctx, &batch.ID, set); err != nil {
			log.Error().Err(err).
				Str("batch_id", batch.ID.String()).
				Str("product", set.Name).
				Msg("import: applying changes failed")
			p.markFailed(ctx, batch, err.Error())
			return nil, err
		}
	}

	report := buildReport(doc, result)
	var reportJSON *string
	if len(report) > 0 {
		data, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		s := string(data)
		reportJSON = &s
	}

	total := len(doc.Products)
	if err := p.batches.MarkCompleted(ctx, batch.ID, total, len(result.Changed), len(report), reportJSON); err != nil {
		return nil, err
	}
	batch.Status = model.BatchCompleted
	batch.TotalProducts = total
	batch.ChangedProducts = len(result.Changed)
	batch.ErrorCount = len(report)
	batch.ErrorReport = reportJSON

	outcome := &Outcome{Batch: batch, Report: report}

	if batch.NotifyEmail != nil && *batch.NotifyEmail != "" {
		pdfPath, err := infra.GenerateImportReportPDF(batch, reportLines(report), p.pdfPath)
		if err != nil {
			log.Warn().Err(err).Str("batch_id", batch.ID.String()).Msg("import: report PDF generation failed")
		} else {
			outcome.PDFPath = pdfPath
		}
	}

	log.Info().
		Str("batch_id", batch.ID.String()).
		Int("products", total).
		Int("changed", len(result.Changed)).
		Int("errors", len(report)).
		Msg("import: batch finished")

	return outcome, nil
}

func (p *Pipeline) markFailed(ctx context.Context, batch *model.ImportBatch, reason string) {
	report, merr := json.Marshal([]dto.ImportErrorLine{{Message: reason}})
	var reportJSON *string
	if merr == nil {
		s := string(report)
		reportJSON = &s
	}
	if err := p.batches.MarkFailed(ctx, batch.ID, reportJSON); err != nil {
		log.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("import: marking batch failed errored")
	}
	batch.Status = model.BatchFailed
	batch.ErrorReport = reportJSON
}

// buildReport merges unparseable rows with reconciliation rejections, ordered
// by source line.
func buildReport(doc *Document, result *pricing.BatchResult) []dto.ImportErrorLine {
	lines := make([]dto.ImportErrorLine, 0, len(doc.Errors)+len(result.Errors))
	for _, rowErr := range doc.Errors {
		lines = append(lines, dto.ImportErrorLine{
			Line:    rowErr.Line,
			Message: rowErr.Message,
		})
	}
	for _, set := range result.Errors {
		lines = append(lines, dto.ImportErrorLine{
			Line:    set.Err.Line,
			Product: set.Name,
			Code:    string(set.Err.Code),
			Message: set.Err.Message(),
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Line < lines[j].Line })
	return lines
}

func reportLines(report []dto.ImportErrorLine) []infra.ReportLine {
	out := make([]infra.ReportLine, len(report))
	for i, l := range report {
		out[i] = infra.ReportLine{Line: l.Line, Product: l.Product, Reason: l.Message}
	}
	return out
}
