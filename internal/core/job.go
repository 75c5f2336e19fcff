package core

// job.go runs the ingestion pipeline for one admitted upload:
//
//  1. pending -> processing
//  2. open the stored bytes
//  3. normalize into a temp file
//  4. read the header
//  5. count data rows (first pass) and record total_rows
//  6. map and upsert every row (second pass), collecting row errors
//  7. write processed_rows every ProgressInterval rows and once at the end
//  8. processing -> completed, with a summary of up to MaxErrorSummary row errors
//
// Row-level problems never abort the job. Anything else is fatal: the upload
// is marked failed and the error is returned to the queue.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

const (
	// DefaultProgressInterval is how many processed rows pass between
	// processed_rows writes.
	DefaultProgressInterval = 100

	// DefaultMaxErrorSummary caps the row errors included in error_message.
	DefaultMaxErrorSummary = 10

	rowErrorSummaryPrefix = "Processed with errors: "
)

// ProcessorConfig tunes the ingestion pipeline. Zero values use defaults.
type ProcessorConfig struct {
	TempDir          string
	ChunkSize        int
	ProgressInterval int
	MaxErrorSummary  int
	JobTimeout       time.Duration // 0 = no limit
}

// Processor executes ingestion jobs.
type Processor struct {
	uploads    UploadRepository
	records    RecordStore
	blobs      BlobStore
	normalizer *Normalizer
	cfg        ProcessorConfig
}

// NewProcessor wires a Processor to its collaborators.
func NewProcessor(uploads UploadRepository, records RecordStore, blobs BlobStore, cfg ProcessorConfig) *Processor {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.MaxErrorSummary <= 0 {
		cfg.MaxErrorSummary = DefaultMaxErrorSummary
	}
	return &Processor{
		uploads:    uploads,
		records:    records,
		blobs:      blobs,
		normalizer: NewNormalizer(cfg.ChunkSize),
		cfg:        cfg,
	}
}

// Handle adapts Process to the JobQueue handler signature.
func (p *Processor) Handle(ctx context.Context, job Job) error {
	_, err := p.Process(ctx, job.UploadID)
	return err
}

// Process ingests one upload to a terminal state. A terminal upload is left
// alone and (nil, nil) is returned, so re-running a finished job is safe.
func (p *Processor) Process(ctx context.Context, uploadID string) (*JobResult, error) {
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	logger := slog.With("upload_id", uploadID)

	upload, err := p.uploads.Get(ctx, uploadID)
	if err != nil {
		// Nothing is marked; a pending upload is picked up by the next sweep.
		return nil, fmt.Errorf("load upload %s: %w", uploadID, err)
	}
	if upload.Status.Terminal() {
		logger.Info("upload already finished, skipping", "status", upload.Status)
		return nil, nil
	}

	if err := p.uploads.MarkProcessing(ctx, uploadID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logger.Info("upload finished concurrently, skipping")
			return nil, nil
		}
		return nil, p.fail(ctx, logger, uploadID, fmt.Errorf("mark processing: %w", err))
	}

	logger.Info("ingestion started", "file", upload.OriginalFilename)

	result, err := p.runRecovered(ctx, logger, upload)
	if err != nil {
		return result, p.fail(ctx, logger, uploadID, err)
	}
	return result, nil
}

// runRecovered turns a panic in the pipeline into a fatal error so the
// upload is marked failed instead of staying processing.
func (p *Processor) runRecovered(ctx context.Context, logger *slog.Logger, upload Upload) (result *JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.run(ctx, logger, upload)
}

// run holds every pipeline step that can fail fatally.
func (p *Processor) run(ctx context.Context, logger *slog.Logger, upload Upload) (*JobResult, error) {
	start := time.Now()
	result := &JobResult{UploadID: upload.ID}

	src, err := p.blobs.Open(ctx, upload.StoragePath)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, upload.StoragePath, err)
	}
	defer src.Close()

	sink, err := NewTempSink(p.cfg.TempDir)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := sink.Cleanup(); err != nil {
			logger.Warn("temp sink cleanup failed", "path", sink.Path(), "error", err)
		}
	}()

	stats, err := p.normalizer.Normalize(sink, src)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrNormalize, err)
	}
	if stats.Fallbacks > 0 || stats.Passthrough > 0 {
		logger.Warn("normalizer used fallback cleaning",
			"fallback_chunks", stats.Fallbacks,
			"passthrough_chunks", stats.Passthrough,
		)
	}
	logger.Debug("normalized",
		"bytes_in", stats.BytesIn,
		"bytes_out", stats.BytesOut,
		"chunks", stats.Chunks,
		"bom_stripped", stats.BOMStripped,
	)

	// First pass: header and row count.
	r, err := sink.Rewind()
	if err != nil {
		return result, err
	}
	header, total, err := countRows(r)
	if err != nil {
		return result, err
	}
	if err := p.uploads.SetTotalRows(ctx, upload.ID, total); err != nil {
		return result, fmt.Errorf("set total rows: %w", err)
	}
	result.TotalRows = total

	mapper := NewRowMapper(header)
	if !mapper.HasField(FieldUniqueKey) {
		logger.Warn("no unique key column in header; every row will be skipped", "header", header)
	}

	// Second pass: map and upsert.
	r, err = sink.Rewind()
	if err != nil {
		return result, err
	}
	cr := newCSVReader(r)
	if _, err := cr.Read(); err != nil {
		return result, fmt.Errorf("re-read header: %w", err)
	}

	progress := newProgressTracker(p.uploads, upload.ID, p.cfg.ProgressInterval)
	rowIndex := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		line := rowIndex + 1 // header is row 1

		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				result.RowErrors = append(result.RowErrors, RowError{Row: line, Reason: "invalid csv: " + pe.Err.Error()})
				continue
			}
			return result, fmt.Errorf("read row %d: %w", line, err)
		}

		mapped := mapper.Map(RecordFromRow(header, row))
		if mapped.Skipped() {
			result.RowErrors = append(result.RowErrors, RowError{Row: line, Reason: mapped.SkipReason})
			continue
		}

		rec := mapped.Record
		rec.UploadID = upload.ID
		if err := p.records.Upsert(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return result, fmt.Errorf("upsert row %d: %w", line, err)
			}
			result.RowErrors = append(result.RowErrors, RowError{Row: line, Reason: err.Error()})
			logger.Error("error processing csv row", "row", line, "error", err)
			continue
		}

		result.ProcessedRows++
		if err := progress.Advance(ctx, result.ProcessedRows); err != nil {
			return result, err
		}
	}

	// Covers the remainder after the last full interval, and zero rows.
	if err := progress.Flush(ctx, result.ProcessedRows); err != nil {
		return result, err
	}

	summary := summarizeRowErrors(result.RowErrors, p.cfg.MaxErrorSummary)
	if err := p.uploads.Complete(ctx, upload.ID, summary); err != nil {
		return result, fmt.Errorf("complete upload: %w", err)
	}

	result.Duration = time.Since(start)
	logger.Info("ingestion completed",
		"total_rows", result.TotalRows,
		"processed_rows", result.ProcessedRows,
		"row_errors", len(result.RowErrors),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// fail records a fatal error on the upload and returns it for the queue.
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, uploadID string, cause error) error {
	logger.Error("ingestion failed", "error", cause)

	// The job context may be what just expired.
	writeCtx := context.WithoutCancel(ctx)
	if err := p.uploads.Fail(writeCtx, uploadID, cause.Error()); err != nil {
		logger.Error("could not mark upload failed", "error", err)
	}
	return cause
}

// newCSVReader returns a reader tolerant of ragged rows and stray quotes.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// countRows reads the header and counts the data records after it without
// retaining them. Records with syntax errors are counted too, since the
// processing pass reports them as row errors.
func countRows(r io.Reader) ([]string, int, error) {
	cr := newCSVReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, ErrEmptyFile
	}
	if err != nil {
		return nil, 0, fmt.Errorf("invalid csv: read header: %w", err)
	}
	header = append([]string(nil), header...)
	if err := checkHeader(header); err != nil {
		return nil, 0, err
	}

	count := 0
	for {
		_, err := cr.Read()
		if err == io.EOF {
			return header, count, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, 0, fmt.Errorf("count rows: %w", err)
			}
		}
		count++
	}
}

// checkHeader rejects headers that are blank or repeat a name, since
// records are keyed by header name.
func checkHeader(header []string) error {
	blank := true
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			blank = false
		}
		if seen[h] {
			return fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
		}
		seen[h] = true
	}
	if blank {
		return ErrEmptyFile
	}
	return nil
}

// summarizeRowErrors builds the completed-with-errors message, or nil when
// every row was ingested.
func summarizeRowErrors(errs []RowError, max int) *string {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) > max {
		errs = errs[:max]
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
	}
	msg := rowErrorSummaryPrefix + strings.Join(parts, "; ")
	return &msg
}

// progressTracker writes processed_rows for one upload.
//
// Each write reads the latest persisted upload first and then applies the
// count, so fields changed by anyone else are never overwritten. This is
// only safe because the job owning an upload is the single writer of its
// processed_rows; status pollers only read. Counts never move backwards.
type progressTracker struct {
	uploads  UploadRepository
	uploadID string
	interval int
}

func newProgressTracker(uploads UploadRepository, uploadID string, interval int) *progressTracker {
	return &progressTracker{uploads: uploads, uploadID: uploadID, interval: interval}
}

// Advance writes progress when processed reaches a multiple of the interval.
func (t *progressTracker) Advance(ctx context.Context, processed int) error {
	if processed == 0 || processed%t.interval != 0 {
		return nil
	}
	return t.Flush(ctx, processed)
}

// Flush unconditionally writes processed.
func (t *progressTracker) Flush(ctx context.Context, processed int) error {
	current, err := t.uploads.Get(ctx, t.uploadID)
	if err != nil {
		return fmt.Errorf("read upload before progress write: %w", err)
	}
	if current.ProcessedRows > processed {
		return nil
	}
	if err := t.uploads.SetProcessedRows(ctx, t.uploadID, processed); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}
