package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/csvingest/internal/core"
	db "github.com/JonMunkholm/csvingest/internal/database"
)

// toPgUUID parses id. Malformed ids are reported as not found, since no
// row can have them.
func toPgUUID(id string) (pgtype.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %q", core.ErrUploadNotFound, id)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func fromPgUUID(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromPgText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// toPgNumeric converts through the decimal's string form so no precision is
// lost to floats.
func toPgNumeric(d decimal.NullDecimal) (pgtype.Numeric, error) {
	if !d.Valid {
		return pgtype.Numeric{}, nil
	}
	var n pgtype.Numeric
	if err := n.Scan(d.Decimal.StringFixed(core.PricePlaces)); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("convert price %s: %w", d.Decimal, err)
	}
	return n, nil
}

func fromPgNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(n.Int, n.Exp), Valid: true}
}

func toUpload(row db.FileUpload) core.Upload {
	u := core.Upload{
		ID:               fromPgUUID(row.ID),
		OriginalFilename: row.OriginalFilename,
		StoragePath:      row.FilePath,
		FileHash:         row.FileHash,
		Status:           core.UploadStatus(row.Status),
		ProcessedRows:    int(row.ProcessedRows),
		ErrorMessage:     fromPgText(row.ErrorMessage),
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
	if row.TotalRows.Valid {
		n := int(row.TotalRows.Int32)
		u.TotalRows = &n
	}
	return u
}

func toUploads(rows []db.FileUpload) []core.Upload {
	out := make([]core.Upload, len(rows))
	for i, r := range rows {
		out[i] = toUpload(r)
	}
	return out
}
