// Package postgres implements the core storage interfaces on PostgreSQL
// through the generated query layer in internal/database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvingest/internal/core"
	db "github.com/JonMunkholm/csvingest/internal/database"
)

const (
	pgUniqueViolation    = "23505"
	fileHashUniqueConstr = "file_uploads_file_hash_key"
)

// Store implements core.UploadRepository and core.RecordStore.
type Store struct {
	pool *pgxpool.Pool
	q    *db.Queries
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: db.New(pool)}
}

var (
	_ core.UploadRepository = (*Store)(nil)
	_ core.RecordStore      = (*Store)(nil)
)

// Ping checks database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Create(ctx context.Context, u core.NewUpload) (core.Upload, error) {
	row, err := s.q.CreateFileUpload(ctx, db.CreateFileUploadParams{
		ID:               pgtype.UUID{Bytes: uuid.New(), Valid: true},
		OriginalFilename: u.OriginalFilename,
		FilePath:         u.StoragePath,
		FileHash:         u.Fingerprint,
	})
	if err != nil {
		if isFingerprintConflict(err) {
			return core.Upload{}, core.ErrDuplicateFingerprint
		}
		return core.Upload{}, fmt.Errorf("insert file upload: %w", err)
	}
	return toUpload(row), nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Upload, error) {
	pgID, err := toPgUUID(id)
	if err != nil {
		return core.Upload{}, err
	}
	row, err := s.q.GetFileUpload(ctx, pgID)
	if err != nil {
		return core.Upload{}, notFound(err, "get file upload")
	}
	return toUpload(row), nil
}

func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (core.Upload, error) {
	row, err := s.q.GetFileUploadByHash(ctx, fingerprint)
	if err != nil {
		return core.Upload{}, notFound(err, "get file upload by hash")
	}
	return toUpload(row), nil
}

func (s *Store) List(ctx context.Context) ([]core.Upload, error) {
	rows, err := s.q.ListFileUploads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file uploads: %w", err)
	}
	return toUploads(rows), nil
}

func (s *Store) ListByStatus(ctx context.Context, status core.UploadStatus) ([]core.Upload, error) {
	rows, err := s.q.ListFileUploadsByStatus(ctx, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s file uploads: %w", status, err)
	}
	return toUploads(rows), nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, "mark processing", func(pgID pgtype.UUID) (int64, error) {
		return s.q.MarkFileUploadProcessing(ctx, pgID)
	})
}

func (s *Store) SetTotalRows(ctx context.Context, id string, total int) error {
	if total > math.MaxInt32 {
		return fmt.Errorf("total rows %d out of range", total)
	}
	return s.transition(ctx, id, "set total rows", func(pgID pgtype.UUID) (int64, error) {
		return s.q.SetFileUploadTotalRows(ctx, db.SetFileUploadTotalRowsParams{
			ID:        pgID,
			TotalRows: pgtype.Int4{Int32: int32(total), Valid: true},
		})
	})
}

func (s *Store) SetProcessedRows(ctx context.Context, id string, processed int) error {
	if processed > math.MaxInt32 {
		return fmt.Errorf("processed rows %d out of range", processed)
	}
	return s.transition(ctx, id, "set processed rows", func(pgID pgtype.UUID) (int64, error) {
		return s.q.SetFileUploadProcessedRows(ctx, db.SetFileUploadProcessedRowsParams{
			ID:            pgID,
			ProcessedRows: int32(processed),
		})
	})
}

func (s *Store) Complete(ctx context.Context, id string, errorMessage *string) error {
	return s.transition(ctx, id, "complete", func(pgID pgtype.UUID) (int64, error) {
		return s.q.CompleteFileUpload(ctx, db.CompleteFileUploadParams{
			ID:           pgID,
			ErrorMessage: toPgText(errorMessage),
		})
	})
}

func (s *Store) Fail(ctx context.Context, id string, errorMessage string) error {
	return s.transition(ctx, id, "fail", func(pgID pgtype.UUID) (int64, error) {
		return s.q.FailFileUpload(ctx, db.FailFileUploadParams{
			ID:           pgID,
			ErrorMessage: pgtype.Text{String: errorMessage, Valid: true},
		})
	})
}

// transition runs a status-guarded update. Zero affected rows means either
// the upload is missing or its status did not allow the change.
func (s *Store) transition(ctx context.Context, id, op string, exec func(pgtype.UUID) (int64, error)) error {
	pgID, err := toPgUUID(id)
	if err != nil {
		return err
	}
	n, err := exec(pgID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.q.GetFileUpload(ctx, pgID); err != nil {
		return notFound(err, op)
	}
	return fmt.Errorf("%s: %w", op, core.ErrInvalidTransition)
}

// Upsert writes rec, replacing any record with the same unique key and
// moving it to rec.UploadID.
func (s *Store) Upsert(ctx context.Context, rec core.Record) error {
	uploadID, err := toPgUUID(rec.UploadID)
	if err != nil {
		return err
	}
	price, err := toPgNumeric(rec.PiecePrice)
	if err != nil {
		return err
	}
	err = s.q.UpsertCsvRecord(ctx, db.UpsertCsvRecordParams{
		FileUploadID:         uploadID,
		UniqueKey:            rec.UniqueKey,
		ProductTitle:         toPgText(rec.ProductTitle),
		ProductDescription:   toPgText(rec.ProductDescription),
		StyleNumber:          toPgText(rec.StyleNumber),
		SanmarMainframeColor: toPgText(rec.SanmarMainframeColor),
		Size:                 toPgText(rec.Size),
		ColorName:            toPgText(rec.ColorName),
		PiecePrice:           price,
	})
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.UniqueKey, err)
	}
	return nil
}

func isFingerprintConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgUniqueViolation &&
		pgErr.ConstraintName == fileHashUniqueConstr
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrUploadNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
