package core

import "strings"

// TargetField names a column of the fixed Record schema.
type TargetField string

const (
	FieldUniqueKey            TargetField = "unique_key"
	FieldProductTitle         TargetField = "product_title"
	FieldProductDescription   TargetField = "product_description"
	FieldStyleNumber          TargetField = "style_number"
	FieldSanmarMainframeColor TargetField = "sanmar_mainframe_color"
	FieldSize                 TargetField = "size"
	FieldColorName            TargetField = "color_name"
	FieldPiecePrice           TargetField = "piece_price"
)

// ErrMissingUniqueKey is the skip reason for rows without a unique key.
const ErrMissingUniqueKey = "UNIQUE_KEY is missing"

// fieldAlias lists the header names accepted for a target field.
// Aliases are tried in order; the first one present in the header wins.
type fieldAlias struct {
	Field   TargetField
	Aliases []string
}

var fieldAliases = []fieldAlias{
	{FieldUniqueKey, []string{"UNIQUE_KEY", "unique_key", "Unique Key", "unique key", "UNIQUEKEY", "uniquekey"}},
	{FieldProductTitle, []string{"PRODUCT_TITLE", "product_title", "Product Title", "product title", "PRODUCTTITLE", "producttitle"}},
	{FieldProductDescription, []string{"PRODUCT_DESCRIPTION", "product_description", "Product Description", "product description", "PRODUCTDESCRIPTION", "productdescription"}},
	{FieldStyleNumber, []string{"STYLE#", "style#", "STYLE", "style", "style_number", "STYLE_NUMBER", "Style#"}},
	{FieldSanmarMainframeColor, []string{"SANMAR_MAINFRAME_COLOR", "sanmar_mainframe_color", "Sanmar Mainframe Color", "sanmar mainframe color", "SANMARMAINFRAMECOLOR"}},
	{FieldSize, []string{"SIZE", "size", "Size"}},
	{FieldColorName, []string{"COLOR_NAME", "color_name", "Color Name", "color name", "COLORNAME", "colorname"}},
	{FieldPiecePrice, []string{"PIECE_PRICE", "piece_price", "Piece Price", "piece price", "PIECEPRICE", "pieceprice"}},
}

// TargetFields returns the schema fields in mapping order.
func TargetFields() []TargetField {
	fields := make([]TargetField, len(fieldAliases))
	for i, fa := range fieldAliases {
		fields[i] = fa.Field
	}
	return fields
}

// normalizeHeader makes header matching case and whitespace insensitive.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(CleanString(h)))
}

// RowResult is the outcome of mapping one row: either a Record, or a
// SkipReason explaining why the row was not ingested.
type RowResult struct {
	Record     Record
	SkipReason string
}

// Skipped reports whether the row should not be upserted.
func (r RowResult) Skipped() bool {
	return r.SkipReason != ""
}

// RowMapper maps raw CSV records onto the Record schema. It is built once
// per file from the header row.
type RowMapper struct {
	// candidates holds, per field, the original header names matching any
	// alias, in alias order.
	candidates map[TargetField][]string
}

// NewRowMapper resolves the alias table against a file's header.
// When two headers normalize to the same key the later one wins.
func NewRowMapper(headers []string) *RowMapper {
	lookup := make(map[string]string, len(headers))
	for _, h := range headers {
		lookup[normalizeHeader(h)] = h
	}

	m := &RowMapper{candidates: make(map[TargetField][]string, len(fieldAliases))}
	for _, fa := range fieldAliases {
		seen := make(map[string]bool)
		for _, alias := range fa.Aliases {
			h, ok := lookup[normalizeHeader(alias)]
			if !ok || seen[h] {
				continue
			}
			seen[h] = true
			m.candidates[fa.Field] = append(m.candidates[fa.Field], h)
		}
	}
	return m
}

// Column returns the header that supplies field, or "" if none matched.
func (m *RowMapper) Column(field TargetField) string {
	if c := m.candidates[field]; len(c) > 0 {
		return c[0]
	}
	return ""
}

// HasField reports whether any header matched field.
func (m *RowMapper) HasField(field TargetField) bool {
	return len(m.candidates[field]) > 0
}

// lookup returns the value of the first matching header present in record.
// A present but blank value yields nil; later aliases are not consulted.
func (m *RowMapper) lookup(record map[string]string, field TargetField) *string {
	for _, h := range m.candidates[field] {
		v, ok := record[h]
		if !ok {
			continue
		}
		return nullableText(v)
	}
	return nil
}

// Map converts one record (header name -> cell) into a Record.
// The only row-level failure is a blank unique key. UploadID is left for
// the caller to set.
func (m *RowMapper) Map(record map[string]string) RowResult {
	key := m.lookup(record, FieldUniqueKey)
	if key == nil {
		return RowResult{SkipReason: ErrMissingUniqueKey}
	}

	rec := Record{
		UniqueKey:            *key,
		ProductTitle:         m.lookup(record, FieldProductTitle),
		ProductDescription:   m.lookup(record, FieldProductDescription),
		StyleNumber:          m.lookup(record, FieldStyleNumber),
		SanmarMainframeColor: m.lookup(record, FieldSanmarMainframeColor),
		Size:                 m.lookup(record, FieldSize),
		ColorName:            m.lookup(record, FieldColorName),
	}
	if price := m.lookup(record, FieldPiecePrice); price != nil {
		rec.PiecePrice = ParsePrice(*price)
	}
	return RowResult{Record: rec}
}

// RecordFromRow pairs a CSV row with the header. Cells missing from a short
// row are absent from the map rather than empty; extra cells are ignored.
func RecordFromRow(headers, row []string) map[string]string {
	record := make(map[string]string, len(headers))
	for i, h := range headers {
		if i >= len(row) {
			break
		}
		record[h] = row[i]
	}
	return record
}
