package core

import "testing"

func TestNewRowMapper_ResolvesAliases(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		field   TargetField
		want    string
	}{
		{"exact uppercase", []string{"UNIQUE_KEY"}, FieldUniqueKey, "UNIQUE_KEY"},
		{"spaced title case", []string{"Unique Key"}, FieldUniqueKey, "Unique Key"},
		{"case insensitive", []string{"UnIqUe_KeY"}, FieldUniqueKey, "UnIqUe_KeY"},
		{"surrounding whitespace", []string{"  PIECE_PRICE "}, FieldPiecePrice, "  PIECE_PRICE "},
		{"style hash", []string{"Style#"}, FieldStyleNumber, "Style#"},
		{"style bare", []string{"style"}, FieldStyleNumber, "style"},
		{"squashed", []string{"COLORNAME"}, FieldColorName, "COLORNAME"},
		{"BOM on first header", []string{"\uFEFFUNIQUE_KEY", "SIZE"}, FieldUniqueKey, "\uFEFFUNIQUE_KEY"},
		{"unmatched", []string{"SKU"}, FieldUniqueKey, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRowMapper(tt.headers)
			if got := m.Column(tt.field); got != tt.want {
				t.Errorf("Column(%s) = %q, want %q", tt.field, got, tt.want)
			}
			if m.HasField(tt.field) != (tt.want != "") {
				t.Errorf("HasField(%s) = %v", tt.field, m.HasField(tt.field))
			}
		})
	}
}

func TestNewRowMapper_AliasOrderWins(t *testing.T) {
	// STYLE# precedes STYLE in the alias list regardless of header order.
	m := NewRowMapper([]string{"STYLE", "STYLE#"})
	if got := m.Column(FieldStyleNumber); got != "STYLE#" {
		t.Errorf("Column(style_number) = %q, want STYLE#", got)
	}

	m = NewRowMapper([]string{"UNIQUE_KEY", "STYLE", "STYLE#"})
	res := m.Map(map[string]string{"UNIQUE_KEY": "k", "STYLE": "other", "STYLE#": "PC61"})
	if res.Record.StyleNumber == nil || *res.Record.StyleNumber != "PC61" {
		t.Errorf("StyleNumber = %v, want PC61", res.Record.StyleNumber)
	}
}

func TestRowMapper_BlankFirstMatchIsNil(t *testing.T) {
	m := NewRowMapper([]string{"UNIQUE_KEY", "STYLE#", "STYLE"})
	res := m.Map(map[string]string{"UNIQUE_KEY": "k1", "STYLE#": "  ", "STYLE": "PC61"})
	if res.Skipped() {
		t.Fatalf("row skipped: %s", res.SkipReason)
	}
	if res.Record.StyleNumber != nil {
		t.Errorf("StyleNumber = %q, want nil (first matching column is blank)", *res.Record.StyleNumber)
	}
}

func TestRowMapper_Map(t *testing.T) {
	headers := []string{
		"UNIQUE_KEY", "PRODUCT_TITLE", "PRODUCT_DESCRIPTION", "STYLE#",
		"SANMAR_MAINFRAME_COLOR", "SIZE", "COLOR_NAME", "PIECE_PRICE",
	}
	m := NewRowMapper(headers)

	row := []string{"K-1", "  Tee ", "Soft cotton", "PC61", "Navy", "M", "True Navy", "$1,204.5"}
	res := m.Map(RecordFromRow(headers, row))
	if res.Skipped() {
		t.Fatalf("row skipped: %s", res.SkipReason)
	}

	r := res.Record
	checks := []struct {
		field string
		got   *string
		want  string
	}{
		{"ProductTitle", r.ProductTitle, "Tee"},
		{"ProductDescription", r.ProductDescription, "Soft cotton"},
		{"StyleNumber", r.StyleNumber, "PC61"},
		{"SanmarMainframeColor", r.SanmarMainframeColor, "Navy"},
		{"Size", r.Size, "M"},
		{"ColorName", r.ColorName, "True Navy"},
	}
	if r.UniqueKey != "K-1" {
		t.Errorf("UniqueKey = %q, want K-1", r.UniqueKey)
	}
	for _, c := range checks {
		if c.got == nil || *c.got != c.want {
			t.Errorf("%s = %v, want %q", c.field, c.got, c.want)
		}
	}
	if !r.PiecePrice.Valid || r.PiecePrice.Decimal.StringFixed(2) != "1204.50" {
		t.Errorf("PiecePrice = %v, want 1204.50", r.PiecePrice)
	}
	if r.UploadID != "" {
		t.Errorf("UploadID = %q, want empty (set by caller)", r.UploadID)
	}
}

func TestRowMapper_SkipsMissingUniqueKey(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		row     []string
	}{
		{"blank key", []string{"UNIQUE_KEY", "SIZE"}, []string{"", "M"}},
		{"whitespace key", []string{"UNIQUE_KEY", "SIZE"}, []string{"   ", "M"}},
		{"no key column", []string{"SKU", "SIZE"}, []string{"abc", "M"}},
		{"short row", []string{"SIZE", "UNIQUE_KEY"}, []string{"M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRowMapper(tt.headers).Map(RecordFromRow(tt.headers, tt.row))
			if !res.Skipped() {
				t.Fatalf("expected row to be skipped, got %+v", res.Record)
			}
			if res.SkipReason != ErrMissingUniqueKey {
				t.Errorf("SkipReason = %q, want %q", res.SkipReason, ErrMissingUniqueKey)
			}
		})
	}
}

func TestRowMapper_OptionalFieldsNil(t *testing.T) {
	headers := []string{"UNIQUE_KEY", "PIECE_PRICE", "SIZE"}
	res := NewRowMapper(headers).Map(RecordFromRow(headers, []string{"k", "N/A", ""}))
	if res.Skipped() {
		t.Fatalf("row skipped: %s", res.SkipReason)
	}
	r := res.Record
	if r.PiecePrice.Valid {
		t.Errorf("PiecePrice = %v, want null", r.PiecePrice)
	}
	if r.Size != nil || r.ProductTitle != nil || r.ColorName != nil {
		t.Errorf("expected nil optional fields, got %+v", r)
	}
}

func TestRecordFromRow(t *testing.T) {
	headers := []string{"a", "b", "c"}

	short := RecordFromRow(headers, []string{"1"})
	if _, ok := short["b"]; ok {
		t.Error("missing cell should be absent, not empty")
	}
	if short["a"] != "1" {
		t.Errorf("a = %q, want 1", short["a"])
	}

	long := RecordFromRow(headers, []string{"1", "2", "3", "4"})
	if len(long) != 3 {
		t.Errorf("extra cells should be ignored, got %v", long)
	}
}

func TestTargetFields(t *testing.T) {
	fields := TargetFields()
	if len(fields) != 8 {
		t.Fatalf("len(TargetFields) = %d, want 8", len(fields))
	}
	if fields[0] != FieldUniqueKey {
		t.Errorf("first field = %s, want unique_key", fields[0])
	}
}
