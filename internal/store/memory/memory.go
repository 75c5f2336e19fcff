// Package memory is an in-process implementation of the core storage
// interfaces. It is used by tests and by DB_DRIVER=memory for local runs;
// contents are lost on exit.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvingest/internal/core"
)

// Store implements core.UploadRepository and core.RecordStore with the same
// transition and uniqueness rules as the Postgres store.
type Store struct {
	mu       sync.RWMutex
	uploads  map[string]*entry
	byHash   map[string]string
	records  map[string]core.Record
	progress map[string][]int
	seq      int64

	// UpsertHook, when set, runs before each upsert; a non-nil error is
	// returned instead of storing the record.
	UpsertHook func(core.Record) error

	now func() time.Time
}

type entry struct {
	upload core.Upload
	seq    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		uploads:  make(map[string]*entry),
		byHash:   make(map[string]string),
		records:  make(map[string]core.Record),
		progress: make(map[string][]int),
		now:      time.Now,
	}
}

var (
	_ core.UploadRepository = (*Store)(nil)
	_ core.RecordStore      = (*Store)(nil)
)

func (s *Store) Create(ctx context.Context, u core.NewUpload) (core.Upload, error) {
	if err := ctx.Err(); err != nil {
		return core.Upload{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[u.Fingerprint]; ok {
		return core.Upload{}, core.ErrDuplicateFingerprint
	}

	now := s.now().UTC()
	s.seq++
	up := core.Upload{
		ID:               uuid.NewString(),
		OriginalFilename: u.OriginalFilename,
		StoragePath:      u.StoragePath,
		FileHash:         u.Fingerprint,
		Status:           core.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.uploads[up.ID] = &entry{upload: up, seq: s.seq}
	s.byHash[u.Fingerprint] = up.ID
	return clone(up), nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Upload, error) {
	if err := ctx.Err(); err != nil {
		return core.Upload{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.uploads[id]
	if !ok {
		return core.Upload{}, core.ErrUploadNotFound
	}
	return clone(e.upload), nil
}

func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (core.Upload, error) {
	if err := ctx.Err(); err != nil {
		return core.Upload{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[fingerprint]
	if !ok {
		return core.Upload{}, core.ErrUploadNotFound
	}
	return clone(s.uploads[id].upload), nil
}

// List returns uploads newest first.
func (s *Store) List(ctx context.Context) ([]core.Upload, error) {
	entries, err := s.sorted(ctx, func(core.Upload) bool { return true })
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// ListByStatus returns uploads in status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status core.UploadStatus) ([]core.Upload, error) {
	return s.sorted(ctx, func(u core.Upload) bool { return u.Status == status })
}

// sorted returns matching uploads in creation order.
func (s *Store) sorted(ctx context.Context, keep func(core.Upload) bool) ([]core.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.uploads))
	for _, e := range s.uploads {
		if keep(e.upload) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		if c := a.upload.CreatedAt.Compare(b.upload.CreatedAt); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	out := make([]core.Upload, len(entries))
	for i, e := range entries {
		out[i] = clone(e.upload)
	}
	return out, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, []core.UploadStatus{core.StatusPending, core.StatusProcessing}, func(u *core.Upload) {
		u.Status = core.StatusProcessing
		u.ErrorMessage = nil
	})
}

func (s *Store) SetTotalRows(ctx context.Context, id string, total int) error {
	return s.update(ctx, id, []core.UploadStatus{core.StatusProcessing}, func(u *core.Upload) {
		u.TotalRows = &total
	})
}

func (s *Store) SetProcessedRows(ctx context.Context, id string, processed int) error {
	err := s.update(ctx, id, []core.UploadStatus{core.StatusProcessing}, func(u *core.Upload) {
		u.ProcessedRows = processed
	})
	if err == nil {
		s.mu.Lock()
		s.progress[id] = append(s.progress[id], processed)
		s.mu.Unlock()
	}
	return err
}

func (s *Store) Complete(ctx context.Context, id string, errorMessage *string) error {
	return s.update(ctx, id, []core.UploadStatus{core.StatusProcessing}, func(u *core.Upload) {
		u.Status = core.StatusCompleted
		u.ErrorMessage = cloneString(errorMessage)
	})
}

func (s *Store) Fail(ctx context.Context, id string, errorMessage string) error {
	return s.update(ctx, id, []core.UploadStatus{core.StatusPending, core.StatusProcessing}, func(u *core.Upload) {
		u.Status = core.StatusFailed
		u.ErrorMessage = &errorMessage
	})
}

// update applies fn when the upload is in one of from.
func (s *Store) update(ctx context.Context, id string, from []core.UploadStatus, fn func(*core.Upload)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.uploads[id]
	if !ok {
		return core.ErrUploadNotFound
	}
	if !slices.Contains(from, e.upload.Status) {
		return core.ErrInvalidTransition
	}
	fn(&e.upload)
	e.upload.UpdatedAt = s.now().UTC()
	return nil
}

// Upsert inserts or replaces the record with the same unique key.
func (s *Store) Upsert(ctx context.Context, rec core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.UpsertHook != nil {
		if err := s.UpsertHook(rec); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[rec.UploadID]; !ok {
		return core.ErrUploadNotFound
	}
	s.records[rec.UniqueKey] = rec
	return nil
}

// Records returns every stored record ordered by unique key.
func (s *Store) Records() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b core.Record) int { return strings.Compare(a.UniqueKey, b.UniqueKey) })
	return out
}

// Record returns the record stored under key.
func (s *Store) Record(key string) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

// ProgressWrites returns every processed_rows value written for id, in order.
func (s *Store) ProgressWrites(id string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.progress[id])
}

func clone(u core.Upload) core.Upload {
	if u.TotalRows != nil {
		n := *u.TotalRows
		u.TotalRows = &n
	}
	u.ErrorMessage = cloneString(u.ErrorMessage)
	return u
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
