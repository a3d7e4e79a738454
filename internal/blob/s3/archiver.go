package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// archiveBatch is the maximum number of events queried per upload. Large
// backlogs are drained over several passes rather than one oversized object.
const archiveBatch = 5000

// Archiver drains loan events older than the retention window out of the
// primary store: each pass queries a batch, uploads it to S3 as JSONL, and
// only then deletes the archived rows. A failed upload leaves the rows in
// place so the next pass retries them.
type Archiver struct {
	writer    domain.BlobWriter
	events    domain.LoanEventStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that keeps retentionDays of events in the
// primary store and runs one archival pass per interval.
func NewArchiver(writer domain.BlobWriter, events domain.LoanEventStore, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		events:    events,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger.With("component", "archiver"),
	}
}

// Run executes archival passes on the configured interval until ctx is
// cancelled. One pass runs immediately on startup.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if n, err := a.ArchiveEvents(ctx, time.Now().Add(-a.retention)); err != nil {
			a.logger.ErrorContext(ctx, "archive pass failed", "error", err)
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived loan events", "count", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ArchiveEvents uploads all loan events older than the cutoff to S3 and
// removes them from the primary store, returning the number archived.
// Events are processed oldest-first in batches; rows are deleted only up to
// the newest event that was successfully uploaded.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	var total int64

	for {
		events, err := a.events.ListBefore(ctx, before, archiveBatch)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(events) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(events)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		last := events[len(events)-1]
		path := archivePath(last.CreatedAt)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}

		// Delete strictly up to and including the last uploaded event.
		cutoff := last.CreatedAt.Add(time.Nanosecond)
		if cutoff.After(before) {
			cutoff = before
		}
		removed, err := a.events.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive prune: %w", err)
		}
		total += removed

		a.logger.DebugContext(ctx, "archived event batch",
			"path", path,
			"uploaded", len(events),
			"removed", removed,
		)

		if len(events) < archiveBatch {
			return total, nil
		}
	}
}

// archivePath builds the S3 key for a batch, partitioned by the day of the
// newest event it contains:
//
//	archive/loan_events/2026-08-28/1756339200.jsonl
func archivePath(last time.Time) string {
	return fmt.Sprintf("archive/loan_events/%s/%d.jsonl", last.UTC().Format("2006-01-02"), last.UTC().Unix())
}

// marshalJSONL serialises events as newline-delimited JSON, one compact
// object per line.
func marshalJSONL(events []domain.LoanEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("jsonl encode event %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
