package core

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// UploadStatus is the lifecycle state of an Upload.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Upload is one ingestion attempt for a file, identified globally by its
// content fingerprint.
type Upload struct {
	ID               string
	OriginalFilename string // display only
	StoragePath      string // opaque blob key
	FileHash         string
	Status           UploadStatus
	TotalRows        *int // nil until the counting pass has run
	ProcessedRows    int
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUpload holds the fields needed to admit a new Upload.
type NewUpload struct {
	Fingerprint      string
	OriginalFilename string
	StoragePath      string
}

// Record is one business entity extracted from a CSV row.
// UniqueKey is unique across all uploads; upserting re-parents the record
// to the most recent UploadID.
type Record struct {
	UploadID             string
	UniqueKey            string
	ProductTitle         *string
	ProductDescription   *string
	StyleNumber          *string
	SanmarMainframeColor *string
	Size                 *string
	ColorName            *string
	PiecePrice           decimal.NullDecimal
}

// RowError describes a row that was skipped. Row is 1-based with the
// header counted as row 1, so the first data row is row 2.
type RowError struct {
	Row    int
	Reason string
}

// JobResult summarizes one completed ingestion run.
type JobResult struct {
	UploadID      string
	TotalRows     int
	ProcessedRows int
	RowErrors     []RowError
	Duration      time.Duration
}

// UploadRepository persists Upload state. Implementations must enforce
// fingerprint uniqueness and monotonic status transitions.
type UploadRepository interface {
	// Create inserts a pending Upload. Returns ErrDuplicateFingerprint when
	// another Upload already owns the fingerprint.
	Create(ctx context.Context, u NewUpload) (Upload, error)
	Get(ctx context.Context, id string) (Upload, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (Upload, error)
	// List returns all uploads, newest first.
	List(ctx context.Context) ([]Upload, error)
	ListByStatus(ctx context.Context, status UploadStatus) ([]Upload, error)

	MarkProcessing(ctx context.Context, id string) error
	SetTotalRows(ctx context.Context, id string, total int) error
	SetProcessedRows(ctx context.Context, id string, processed int) error
	Complete(ctx context.Context, id string, errorMessage *string) error
	Fail(ctx context.Context, id string, errorMessage string) error
}

// RecordStore is the upsert target for mapped rows. Each call is atomic on
// its own; there is no cross-row transaction.
type RecordStore interface {
	Upsert(ctx context.Context, rec Record) error
}

// BlobStore resolves storage references to bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Dispatcher hands ingestion jobs to an executor.
type Dispatcher interface {
	Submit(job Job) error
}

// Job is the unit of work for the queue: ingest one admitted upload.
type Job struct {
	UploadID string
}
