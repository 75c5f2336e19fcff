package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultMaxFileSize is the largest accepted upload (100 MiB).
	DefaultMaxFileSize int64 = 100 << 20

	// DefaultStoragePrefix is the blob key prefix for stored uploads.
	DefaultStoragePrefix = "csv-uploads"
)

// DefaultAllowedExtensions are the accepted upload extensions, lowercase
// and without the dot.
var DefaultAllowedExtensions = []string{"csv", "txt"}

// ServiceConfig configures upload admission.
type ServiceConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	TempDir           string
	StoragePrefix     string
}

// Service is the entry point for upload admission and status queries.
// Ingestion itself runs in the Processor behind the Dispatcher.
type Service struct {
	registry   *Registry
	uploads    UploadRepository
	blobs      BlobStore
	dispatcher Dispatcher
	limiter    *UploadLimiter
	cfg        ServiceConfig
}

// NewService wires the admission path. limiter may be nil for no limit.
func NewService(uploads UploadRepository, blobs BlobStore, dispatcher Dispatcher, limiter *UploadLimiter, cfg ServiceConfig) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	if cfg.StoragePrefix == "" {
		cfg.StoragePrefix = DefaultStoragePrefix
	}
	return &Service{
		registry:   NewRegistry(uploads),
		uploads:    uploads,
		blobs:      blobs,
		dispatcher: dispatcher,
		limiter:    limiter,
		cfg:        cfg,
	}
}

// UploadOutcome is the result of an admission. Created is false when the
// same content had already been uploaded.
type UploadOutcome struct {
	Upload  Upload
	Created bool
}

// Upload validates and admits a file. r is the request body part and may be
// nil when no file was sent. size is the client-declared size, or -1 if
// unknown; the real size is enforced while reading.
//
// Identical content always resolves to the same Upload, including when two
// requests race. Only the request that created the Upload dispatches a job.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, size int64) (UploadOutcome, error) {
	if r == nil {
		return UploadOutcome{}, newFileValidationError("The file field is required.", "The file field is required.")
	}
	ext, err := s.checkExtension(filename)
	if err != nil {
		return UploadOutcome{}, err
	}
	if size > s.cfg.MaxFileSize {
		return UploadOutcome{}, s.tooLarge()
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return UploadOutcome{}, err
		}
		defer s.limiter.Release()
	}

	spool, fingerprint, n, err := s.spool(r)
	if err != nil {
		return UploadOutcome{}, err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	logger := slog.With("file", filename, "fingerprint", fingerprint)

	if existing, err := s.uploads.GetByFingerprint(ctx, fingerprint); err == nil {
		logger.Info("duplicate upload", "upload_id", existing.ID)
		return UploadOutcome{Upload: existing}, nil
	} else if !errors.Is(err, ErrUploadNotFound) {
		return UploadOutcome{}, fmt.Errorf("lookup fingerprint: %w", err)
	}

	key := path.Join(s.cfg.StoragePrefix, uuid.NewString()+"."+ext)
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return UploadOutcome{}, fmt.Errorf("rewind spool: %w", err)
	}
	if err := s.blobs.Put(ctx, key, spool, n); err != nil {
		return UploadOutcome{}, fmt.Errorf("store upload: %w", err)
	}

	upload, isNew, err := s.registry.Admit(ctx, fingerprint, filename, key)
	if err != nil {
		s.discardBlob(logger, key)
		return UploadOutcome{}, err
	}
	if !isNew {
		// Another request admitted the same bytes first.
		s.discardBlob(logger, key)
		logger.Info("duplicate upload", "upload_id", upload.ID)
		return UploadOutcome{Upload: upload}, nil
	}

	logger = logger.With("upload_id", upload.ID)
	if err := s.dispatcher.Submit(Job{UploadID: upload.ID}); err != nil {
		// The upload stays pending and is picked up by ResumePending.
		logger.Warn("could not dispatch ingestion job", "error", err)
	} else {
		logger.Info("upload admitted", "bytes", n, "storage_path", key)
	}
	return UploadOutcome{Upload: upload, Created: true}, nil
}

// spool copies r to a temp file while hashing it. The returned file is
// positioned at its end; the caller must close and remove it.
func (s *Service) spool(r io.Reader) (*os.File, string, int64, error) {
	f, err := os.CreateTemp(s.cfg.TempDir, "upload_*")
	if err != nil {
		return nil, "", 0, fmt.Errorf("create spool file: %w", err)
	}

	hr := NewHashingReader(io.LimitReader(r, s.cfg.MaxFileSize+1))
	n, err := io.Copy(f, hr)
	if err == nil && n > s.cfg.MaxFileSize {
		err = s.tooLarge()
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		if IsValidationError(err) {
			return nil, "", 0, err
		}
		return nil, "", 0, fmt.Errorf("spool upload: %w", err)
	}
	return f, hr.Sum(), n, nil
}

func (s *Service) checkExtension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return "", newFileValidationError(
			"Invalid file type. Only CSV and TXT files are allowed.",
			"The file must be a CSV or TXT file.",
		)
	}
	return ext, nil
}

func (s *Service) tooLarge() error {
	return NewFileTooLargeError(s.cfg.MaxFileSize)
}

// MaxFileSize is the largest accepted upload in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

func (s *Service) discardBlob(logger *slog.Logger, key string) {
	// The request may already be done; the blob is ours to remove regardless.
	if err := s.blobs.Delete(context.Background(), key); err != nil {
		logger.Warn("could not remove unused blob", "storage_path", key, "error", err)
	}
}

// GetUpload returns one upload.
func (s *Service) GetUpload(ctx context.Context, id string) (Upload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Upload{}, ErrUploadNotFound
	}
	return s.registry.Get(ctx, id)
}

// ListUploads returns all uploads, newest first.
func (s *Service) ListUploads(ctx context.Context) ([]Upload, error) {
	return s.registry.List(ctx)
}
