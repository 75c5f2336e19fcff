package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/storage"
	"github.com/JonMunkholm/csvingest/internal/store/memory"
)

type harness struct {
	store   *memory.Store
	blobs   *storage.Local
	proc    *core.Processor
	tempDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	store := memory.New()
	tempDir := t.TempDir()
	return &harness{
		store:   store,
		blobs:   blobs,
		tempDir: tempDir,
		proc: core.NewProcessor(store, store, blobs, core.ProcessorConfig{
			TempDir:   tempDir,
			ChunkSize: 64,
		}),
	}
}

// admit stores content and registers a pending upload for it.
func (h *harness) admit(t *testing.T, name, content string) core.Upload {
	t.Helper()
	ctx := context.Background()

	fp, n, err := core.Fingerprint(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	key := "csv-uploads/" + fp[:16] + ".csv"
	if err := h.blobs.Put(ctx, key, strings.NewReader(content), n); err != nil {
		t.Fatalf("Put: %v", err)
	}
	u, isNew, err := core.NewRegistry(h.store).Admit(ctx, fp, name, key)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !isNew {
		t.Fatalf("Admit(%s) returned existing upload", name)
	}
	return u
}

func (h *harness) get(t *testing.T, id string) core.Upload {
	t.Helper()
	u, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return u
}

func csvRows(header string, rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

func TestProcess_MissingUniqueKeyIsRowError(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "products.csv", csvRows("UNIQUE_KEY,PRODUCT_TITLE,PIECE_PRICE",
		"k1,Tee,$10.00",
		",Hoodie,20",
		"k3,Cap,5.5",
	))

	result, err := h.proc.Process(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TotalRows != 3 || result.ProcessedRows != 2 {
		t.Errorf("result total/processed = %d/%d, want 3/2", result.TotalRows, result.ProcessedRows)
	}
	if len(result.RowErrors) != 1 || result.RowErrors[0].Row != 3 {
		t.Errorf("RowErrors = %+v, want one error on row 3", result.RowErrors)
	}

	got := h.get(t, u.ID)
	if got.Status != core.StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.TotalRows == nil || *got.TotalRows != 3 {
		t.Errorf("TotalRows = %v, want 3", got.TotalRows)
	}
	if got.ProcessedRows != 2 {
		t.Errorf("ProcessedRows = %d, want 2", got.ProcessedRows)
	}
	wantMsg := "Processed with errors: Row 3: UNIQUE_KEY is missing"
	if got.ErrorMessage == nil || *got.ErrorMessage != wantMsg {
		t.Errorf("ErrorMessage = %v, want %q", got.ErrorMessage, wantMsg)
	}

	records := h.store.Records()
	if len(records) != 2 || records[0].UniqueKey != "k1" || records[1].UniqueKey != "k3" {
		t.Fatalf("records = %+v, want k1 and k3", records)
	}
	if p := records[1].PiecePrice; !p.Valid || p.Decimal.StringFixed(2) != "5.50" {
		t.Errorf("k3 price = %v, want 5.50", p)
	}
}

func TestProcess_CleanFileHasNoErrorMessage(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "clean.csv", csvRows("UNIQUE_KEY,SIZE", "a,S", "b,M"))

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := h.get(t, u.ID)
	if got.Status != core.StatusCompleted || got.ErrorMessage != nil {
		t.Errorf("got status %s, message %v; want completed with no message", got.Status, got.ErrorMessage)
	}
}

func TestProcess_UnreadableSourceFails(t *testing.T) {
	h := newHarness(t)
	u, _, err := core.NewRegistry(h.store).Admit(context.Background(), strings.Repeat("a", 64), "gone.csv", "csv-uploads/missing.csv")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	_, err = h.proc.Process(context.Background(), u.ID)
	if !errors.Is(err, core.ErrSourceUnreadable) {
		t.Fatalf("Process error = %v, want ErrSourceUnreadable", err)
	}

	got := h.get(t, u.ID)
	if got.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "source file unreadable") {
		t.Errorf("ErrorMessage = %v, want unreadable reason", got.ErrorMessage)
	}
	if n := len(h.store.Records()); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
}

func TestProcess_FatalFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty file", "", core.ErrEmptyFile},
		{"only BOM", "\xEF\xBB\xBF", core.ErrEmptyFile},
		{"duplicate header", "UNIQUE_KEY,SIZE,SIZE\nk,M,L\n", core.ErrDuplicateHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			u := h.admit(t, "bad.csv", tt.content)

			_, err := h.proc.Process(context.Background(), u.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Process error = %v, want %v", err, tt.wantErr)
			}
			if got := h.get(t, u.ID); got.Status != core.StatusFailed {
				t.Errorf("Status = %s, want failed", got.Status)
			}
		})
	}
}

func TestProcess_HeaderOnlyCompletesWithZeroRows(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "header.csv", "UNIQUE_KEY,SIZE\n")

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := h.get(t, u.ID)
	if got.Status != core.StatusCompleted || got.TotalRows == nil || *got.TotalRows != 0 {
		t.Errorf("got %+v, want completed with total 0", got)
	}
	if writes := h.store.ProgressWrites(u.ID); !reflect.DeepEqual(writes, []int{0}) {
		t.Errorf("progress writes = %v, want [0]", writes)
	}
}

func TestProcess_ProgressWrites(t *testing.T) {
	tests := []struct {
		rows int
		want []int
	}{
		{rows: 1, want: []int{1}},
		{rows: 99, want: []int{99}},
		{rows: 100, want: []int{100, 100}},
		{rows: 250, want: []int{100, 200, 250}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows", tt.rows), func(t *testing.T) {
			h := newHarness(t)
			rows := make([]string, tt.rows)
			for i := range rows {
				rows[i] = fmt.Sprintf("key-%d,M", i)
			}
			u := h.admit(t, "many.csv", csvRows("UNIQUE_KEY,SIZE", rows...))

			if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if writes := h.store.ProgressWrites(u.ID); !reflect.DeepEqual(writes, tt.want) {
				t.Errorf("progress writes = %v, want %v", writes, tt.want)
			}
			got := h.get(t, u.ID)
			if got.ProcessedRows != tt.rows || *got.TotalRows != tt.rows {
				t.Errorf("processed/total = %d/%d, want %d", got.ProcessedRows, *got.TotalRows, tt.rows)
			}
		})
	}
}

func TestProcess_ReparentsRecordsToLatestUpload(t *testing.T) {
	h := newHarness(t)
	first := h.admit(t, "v1.csv", csvRows("UNIQUE_KEY,PRODUCT_TITLE", "k1,Old", "k2,Keep"))
	second := h.admit(t, "v2.csv", csvRows("Unique Key,Product Title", "k1,New"))

	ctx := context.Background()
	if _, err := h.proc.Process(ctx, first.ID); err != nil {
		t.Fatalf("Process first: %v", err)
	}
	if _, err := h.proc.Process(ctx, second.ID); err != nil {
		t.Fatalf("Process second: %v", err)
	}

	k1, ok := h.store.Record("k1")
	if !ok {
		t.Fatal("k1 missing")
	}
	if k1.UploadID != second.ID {
		t.Errorf("k1.UploadID = %s, want %s", k1.UploadID, second.ID)
	}
	if k1.ProductTitle == nil || *k1.ProductTitle != "New" {
		t.Errorf("k1.ProductTitle = %v, want New", k1.ProductTitle)
	}

	k2, _ := h.store.Record("k2")
	if k2.UploadID != first.ID {
		t.Errorf("k2.UploadID = %s, want %s", k2.UploadID, first.ID)
	}
}

func TestProcess_LaterRowWinsWithinFile(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "dupes.csv", csvRows("UNIQUE_KEY,SIZE", "k1,S", "k1,XL"))

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	rec, _ := h.store.Record("k1")
	if rec.Size == nil || *rec.Size != "XL" {
		t.Errorf("Size = %v, want XL", rec.Size)
	}
	if got := h.get(t, u.ID); got.ProcessedRows != 2 {
		t.Errorf("ProcessedRows = %d, want 2", got.ProcessedRows)
	}
}

func TestProcess_ErrorSummaryIsCapped(t *testing.T) {
	h := newHarness(t)
	rows := make([]string, 15)
	for i := range rows {
		rows[i] = ",M"
	}
	rows = append(rows, "ok,M")
	u := h.admit(t, "bad-rows.csv", csvRows("UNIQUE_KEY,SIZE", rows...))

	result, err := h.proc.Process(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.RowErrors) != 15 {
		t.Errorf("RowErrors = %d, want 15", len(result.RowErrors))
	}

	got := h.get(t, u.ID)
	if got.Status != core.StatusCompleted {
		t.Fatalf("Status = %s, want completed", got.Status)
	}
	msg := *got.ErrorMessage
	if !strings.HasPrefix(msg, "Processed with errors: Row 2: ") {
		t.Errorf("message = %q", msg)
	}
	if n := strings.Count(msg, "UNIQUE_KEY is missing"); n != 10 {
		t.Errorf("summary lists %d errors, want 10", n)
	}
	if !strings.Contains(msg, "Row 11: ") || strings.Contains(msg, "Row 12: ") {
		t.Errorf("summary should stop at row 11: %q", msg)
	}
}

func TestProcess_UpsertFailureIsRowError(t *testing.T) {
	h := newHarness(t)
	h.store.UpsertHook = func(r core.Record) error {
		if r.UniqueKey == "bad" {
			return errors.New("value too long for type character varying(255)")
		}
		return nil
	}
	u := h.admit(t, "upsert.csv", csvRows("UNIQUE_KEY", "a", "bad", "c"))

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := h.get(t, u.ID)
	if got.Status != core.StatusCompleted || got.ProcessedRows != 2 {
		t.Errorf("status/processed = %s/%d, want completed/2", got.Status, got.ProcessedRows)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "Row 3: value too long") {
		t.Errorf("ErrorMessage = %v", got.ErrorMessage)
	}
}

func TestProcess_PanicMarksUploadFailed(t *testing.T) {
	h := newHarness(t)
	h.store.UpsertHook = func(r core.Record) error {
		if r.UniqueKey == "b" {
			panic("boom")
		}
		return nil
	}
	u := h.admit(t, "panic.csv", csvRows("UNIQUE_KEY", "a", "b", "c"))

	queue := core.NewJobQueue(1, 4, h.proc.Handle)
	queue.Start(context.Background())
	if err := queue.Submit(core.Job{UploadID: u.ID}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got := h.get(t, u.ID)
	if got.Status != core.StatusFailed {
		t.Fatalf("Status = %s, want %s", got.Status, core.StatusFailed)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "job panicked: boom") {
		t.Errorf("ErrorMessage = %v, want panic reason", got.ErrorMessage)
	}
	if st := queue.Status(); st.Failed != 1 {
		t.Errorf("queue failed = %d, want 1", st.Failed)
	}
}

func TestProcess_NormalizesEncodingAndHeaders(t *testing.T) {
	h := newHarness(t)
	content := "\xEF\xBB\xBF  unique_key ,Color Name,Piece Price\r\n" +
		"k1,Caf\xE9 Blue,\"$1,000\"\r\n" +
		"k2,Crème,\r\n"
	u := h.admit(t, "excel.csv", content)

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	k1, ok := h.store.Record("k1")
	if !ok {
		t.Fatalf("k1 missing; records = %+v", h.store.Records())
	}
	if k1.ColorName == nil || *k1.ColorName != "Caf Blue" {
		t.Errorf("k1.ColorName = %v, want %q", k1.ColorName, "Caf Blue")
	}
	if !k1.PiecePrice.Valid || k1.PiecePrice.Decimal.StringFixed(2) != "1000.00" {
		t.Errorf("k1.PiecePrice = %v, want 1000.00", k1.PiecePrice)
	}

	k2, _ := h.store.Record("k2")
	if k2.ColorName == nil || *k2.ColorName != "Crème" {
		t.Errorf("k2.ColorName = %v, want Crème", k2.ColorName)
	}
	if k2.PiecePrice.Valid {
		t.Errorf("k2.PiecePrice = %v, want null", k2.PiecePrice)
	}
}

func TestProcess_FieldLeadingBOMIsStripped(t *testing.T) {
	h := newHarness(t)
	// Only the file's first bytes are a stream BOM; these sit in later rows.
	u := h.admit(t, "fieldbom.csv", csvRows("UNIQUE_KEY,PRODUCT_TITLE",
		"a,\uFEFFabc",
		"b,x\uFEFFy",
	))

	if _, err := h.proc.Process(context.Background(), u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	tests := []struct {
		key, want string
	}{
		{"a", "abc"},
		{"b", "x\uFEFFy"},
	}
	for _, tt := range tests {
		rec, ok := h.store.Record(tt.key)
		if !ok {
			t.Fatalf("record %s not stored", tt.key)
		}
		if rec.ProductTitle == nil || *rec.ProductTitle != tt.want {
			t.Errorf("record %s ProductTitle = %v, want %q", tt.key, rec.ProductTitle, tt.want)
		}
	}
}

func TestProcess_RaggedRows(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "ragged.csv", "SIZE,UNIQUE_KEY,COLOR_NAME\nM,k1\nL,k2,Red,extra\nS\n")

	result, err := h.proc.Process(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TotalRows != 3 || result.ProcessedRows != 2 {
		t.Errorf("total/processed = %d/%d, want 3/2", result.TotalRows, result.ProcessedRows)
	}
	k1, _ := h.store.Record("k1")
	if k1.ColorName != nil {
		t.Errorf("k1.ColorName = %q, want nil for missing cell", *k1.ColorName)
	}
}

func TestProcess_TerminalUploadIsNoOp(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "once.csv", csvRows("UNIQUE_KEY", "k1"))
	ctx := context.Background()

	if _, err := h.proc.Process(ctx, u.ID); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	before := h.get(t, u.ID)

	result, err := h.proc.Process(ctx, u.ID)
	if err != nil || result != nil {
		t.Fatalf("second Process = (%v, %v), want (nil, nil)", result, err)
	}
	after := h.get(t, u.ID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.Status != core.StatusCompleted {
		t.Errorf("terminal upload was modified: before %+v, after %+v", before, after)
	}
}

func TestProcess_ResumesProcessingUpload(t *testing.T) {
	h := newHarness(t)
	u := h.admit(t, "resume.csv", csvRows("UNIQUE_KEY", "k1", "k2"))
	ctx := context.Background()

	// Simulate a worker that died mid-job.
	if err := h.store.MarkProcessing(ctx, u.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if _, err := h.proc.Process(ctx, u.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := h.get(t, u.ID); got.Status != core.StatusCompleted || got.ProcessedRows != 2 {
		t.Errorf("got %s/%d, want completed/2", got.Status, got.ProcessedRows)
	}
}

func TestProcess_UnknownUpload(t *testing.T) {
	h := newHarness(t)
	_, err := h.proc.Process(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, core.ErrUploadNotFound) {
		t.Errorf("Process error = %v, want ErrUploadNotFound", err)
	}
}

func TestProcess_RemovesTempFiles(t *testing.T) {
	h := newHarness(t)
	ok := h.admit(t, "ok.csv", csvRows("UNIQUE_KEY", "k1"))
	bad := h.admit(t, "bad.csv", "")

	ctx := context.Background()
	h.proc.Process(ctx, ok.ID)
	h.proc.Process(ctx, bad.ID)

	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("temp file left behind: %s", filepath.Join(h.tempDir, e.Name()))
	}
}
