package core

import (
	"context"
	"errors"
	"fmt"
)

// Registry is the idempotency boundary for uploads. Admission is keyed by
// content fingerprint; the underlying store's unique constraint settles
// races between concurrent admissions of the same bytes.
type Registry struct {
	uploads UploadRepository
}

// NewRegistry creates a Registry over the given repository.
func NewRegistry(uploads UploadRepository) *Registry {
	return &Registry{uploads: uploads}
}

// Admit returns the Upload owning fingerprint. isNew is true only when this
// call created it, in which case the caller must dispatch an ingestion job.
// An existing Upload is returned untouched.
func (r *Registry) Admit(ctx context.Context, fingerprint, filename, storageRef string) (Upload, bool, error) {
	existing, err := r.uploads.GetByFingerprint(ctx, fingerprint)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUploadNotFound) {
		return Upload{}, false, fmt.Errorf("lookup fingerprint: %w", err)
	}

	created, err := r.uploads.Create(ctx, NewUpload{
		Fingerprint:      fingerprint,
		OriginalFilename: filename,
		StoragePath:      storageRef,
	})
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrDuplicateFingerprint) {
		return Upload{}, false, fmt.Errorf("create upload: %w", err)
	}

	// Lost the race: another admission created it between lookup and insert.
	existing, err = r.uploads.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return Upload{}, false, fmt.Errorf("re-read upload after duplicate: %w", err)
	}
	return existing, false, nil
}

// Get returns an Upload by id.
func (r *Registry) Get(ctx context.Context, id string) (Upload, error) {
	return r.uploads.Get(ctx, id)
}

// List returns all Uploads, newest first.
func (r *Registry) List(ctx context.Context) ([]Upload, error) {
	return r.uploads.List(ctx)
}
