package web

import (
	"time"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/dustin/go-humanize"
)

// timestampLayout is the wire format for upload timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// uploadJSON is the wire shape of an Upload.
type uploadJSON struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	Status           core.UploadStatus `json:"status"`
	TotalRows        *int              `json:"total_rows"`
	ProcessedRows    int               `json:"processed_rows"`
	ErrorMessage     *string           `json:"error_message"`
	CreatedAt        string            `json:"created_at"`
	CreatedAtHuman   string            `json:"created_at_human"`
	UpdatedAt        string            `json:"updated_at"`
}

type dataResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func presentUpload(u core.Upload, now time.Time) uploadJSON {
	return uploadJSON{
		ID:               u.ID,
		OriginalFilename: u.OriginalFilename,
		Status:           u.Status,
		TotalRows:        u.TotalRows,
		ProcessedRows:    u.ProcessedRows,
		ErrorMessage:     u.ErrorMessage,
		CreatedAt:        u.CreatedAt.UTC().Format(timestampLayout),
		CreatedAtHuman:   humanize.RelTime(u.CreatedAt, now, "ago", "from now"),
		UpdatedAt:        u.UpdatedAt.UTC().Format(timestampLayout),
	}
}

func presentUploads(uploads []core.Upload, now time.Time) []uploadJSON {
	out := make([]uploadJSON, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, presentUpload(u, now))
	}
	return out
}
