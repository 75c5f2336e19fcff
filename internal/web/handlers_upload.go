package web

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the body allowance on top of the file size for
// boundaries, part headers and small form fields.
const multipartOverhead = 1 << 20

// handleUpload streams the multipart "file" part into the service.
// The file is never buffered in memory; the service spools and hashes it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	filename, part, err := filePart(r)
	if err != nil {
		s.respondError(w, r, s.bodyError(err))
		return
	}

	var src io.Reader
	if part != nil {
		defer part.Close()
		src = part
	}

	outcome, err := s.service.Upload(r.Context(), filename, src, -1)
	if err != nil {
		s.respondError(w, r, s.bodyError(err))
		return
	}

	if outcome.Created {
		writeJSON(w, http.StatusCreated, dataResponse{
			Message: "File uploaded successfully",
			Data:    presentUpload(outcome.Upload, s.now()),
		})
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{
		Message: "File already uploaded",
		Data:    presentUpload(outcome.Upload, s.now()),
	})
}

// bodyError reports an exceeded body cap as the file size validation error.
func (s *Server) bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return core.NewFileTooLargeError(s.service.MaxFileSize())
	}
	return err
}

// filePart advances the multipart reader to the "file" part. It returns a
// nil part when the request has no usable file, so the service reports the
// field as required.
func filePart(r *http.Request) (string, *multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, nil
	}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, nil
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return "", nil, err
			}
			// Malformed body: treat as no file.
			return "", nil, nil
		}
		if p.FormName() == "file" && p.FileName() != "" {
			return p.FileName(), p, nil
		}
		p.Close()
	}
}

// handleListUploads returns every upload, newest first.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.service.ListUploads(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: presentUploads(uploads, s.now())})
}

// handleGetUpload returns one upload, used by clients polling progress.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.GetUpload(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: presentUpload(u, s.now())})
}
