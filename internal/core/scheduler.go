package core

// scheduler.go re-dispatches uploads that were admitted while the job queue
// was full. Those uploads stay pending; the sweeper hands them to the
// dispatcher again on a fixed interval until they are picked up.
//
// Only pending uploads are swept. Uploads found processing at runtime belong
// to a live worker; those left over from a crash are handled once at startup
// by ResumePending.

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StartPendingSweeper runs until ctx is done, resubmitting pending uploads
// every interval. It does nothing when interval is not positive.
func (s *Service) StartPendingSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("pending upload sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pending upload sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.resume(ctx, StatusPending)
			if err != nil {
				slog.Error("pending upload sweep failed", "error", err)
			} else if n > 0 {
				slog.Debug("pending uploads resubmitted", "count", n)
			}
		}
	}
}

// ResumePending re-dispatches uploads left pending or processing, e.g. by a
// full queue or a restart mid-job. Call it once at startup, before any job
// runs. It returns how many were submitted.
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	n, err := s.resume(ctx, StatusProcessing, StatusPending)
	if n > 0 {
		slog.Info("resumed unfinished uploads", "count", n)
	}
	return n, err
}

// resume submits every upload in the given statuses, oldest first within
// each status. It stops quietly at the first rejected submit; the rest are
// retried later.
func (s *Service) resume(ctx context.Context, statuses ...UploadStatus) (int, error) {
	var ids []string
	for _, status := range statuses {
		uploads, err := s.uploads.ListByStatus(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("list %s uploads: %w", status, err)
		}
		for _, u := range uploads {
			ids = append(ids, u.ID)
		}
	}

	submitted := 0
	for _, id := range ids {
		if err := s.dispatcher.Submit(Job{UploadID: id}); err != nil {
			slog.Warn("stopped resuming uploads", "remaining", len(ids)-submitted, "error", err)
			return submitted, nil
		}
		submitted++
	}
	return submitted, nil
}
