package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/csvingest/internal/core"
)

func TestStore_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.Create(ctx, core.NewUpload{Fingerprint: "fp", OriginalFilename: "a.csv", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Progress writes require processing.
	if err := s.SetProcessedRows(ctx, u.ID, 1); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("SetProcessedRows while pending = %v, want ErrInvalidTransition", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"mark processing", func() error { return s.MarkProcessing(ctx, u.ID) }},
		{"mark processing again", func() error { return s.MarkProcessing(ctx, u.ID) }},
		{"set total", func() error { return s.SetTotalRows(ctx, u.ID, 5) }},
		{"set processed", func() error { return s.SetProcessedRows(ctx, u.ID, 5) }},
		{"complete", func() error { return s.Complete(ctx, u.ID, nil) }},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
	}

	// Terminal: nothing moves any more.
	if err := s.MarkProcessing(ctx, u.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("MarkProcessing after complete = %v, want ErrInvalidTransition", err)
	}
	if err := s.Fail(ctx, u.ID, "late"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("Fail after complete = %v, want ErrInvalidTransition", err)
	}

	got, _ := s.Get(ctx, u.ID)
	if got.Status != core.StatusCompleted || *got.TotalRows != 5 || got.ProcessedRows != 5 {
		t.Errorf("final upload = %+v", got)
	}
}

func TestStore_FailFromPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.Create(ctx, core.NewUpload{Fingerprint: "fp"})

	if err := s.Fail(ctx, u.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ := s.Get(ctx, u.ID)
	if got.Status != core.StatusFailed || got.ErrorMessage == nil || *got.ErrorMessage != "boom" {
		t.Errorf("upload = %+v", got)
	}
}

func TestStore_DuplicateFingerprint(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Create(ctx, core.NewUpload{Fingerprint: "fp"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, core.NewUpload{Fingerprint: "fp"}); !errors.Is(err, core.ErrDuplicateFingerprint) {
		t.Errorf("second Create = %v, want ErrDuplicateFingerprint", err)
	}
}

func TestStore_UnknownUpload(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrUploadNotFound) {
		t.Errorf("Get = %v", err)
	}
	if err := s.MarkProcessing(ctx, "missing"); !errors.Is(err, core.ErrUploadNotFound) {
		t.Errorf("MarkProcessing = %v", err)
	}
	if err := s.Upsert(ctx, core.Record{UploadID: "missing", UniqueKey: "k"}); !errors.Is(err, core.ErrUploadNotFound) {
		t.Errorf("Upsert = %v", err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.Create(ctx, core.NewUpload{Fingerprint: "fp"})
	s.MarkProcessing(ctx, u.ID)
	s.SetTotalRows(ctx, u.ID, 3)

	got, _ := s.Get(ctx, u.ID)
	*got.TotalRows = 99

	again, _ := s.Get(ctx, u.ID)
	if *again.TotalRows != 3 {
		t.Errorf("stored TotalRows changed through returned pointer: %d", *again.TotalRows)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.Create(ctx, core.NewUpload{Fingerprint: "a"})
	b, _ := s.Create(ctx, core.NewUpload{Fingerprint: "b"})

	size := "S"
	s.Upsert(ctx, core.Record{UploadID: a.ID, UniqueKey: "k", Size: &size})
	s.Upsert(ctx, core.Record{UploadID: b.ID, UniqueKey: "k"})

	rec, ok := s.Record("k")
	if !ok || rec.UploadID != b.ID || rec.Size != nil {
		t.Errorf("record = %+v, want replaced by upload b", rec)
	}
	if n := len(s.Records()); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}
