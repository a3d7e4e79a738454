package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/store/memory"
)

// captureWriter records uploads in memory.
type captureWriter struct {
	paths  []string
	bodies [][]byte
	fail   bool
}

func (w *captureWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.fail {
		return assert.AnError
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.bodies = append(w.bodies, body)
	return nil
}

func seedEvents(t *testing.T, store *memory.Store, at time.Time, n int) {
	t.Helper()
	events := make([]domain.LoanEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, domain.LoanEvent{
			ID:        strings.Repeat("a", 8) + string(rune('0'+i%10)),
			Borrower:  domain.ID{31: byte(i + 1)},
			Kind:      domain.LoanKindArbitrage,
			Event:     "settled",
			Amount:    uint64(1000 * (i + 1)),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, store.Units().ApplyUnit(context.Background(), domain.UnitEffects{Events: events}))
}

func TestArchiveEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("UploadsThenPrunes", func(t *testing.T) {
		store := memory.New()
		old := time.Now().Add(-48 * time.Hour)
		seedEvents(t, store, old, 3)

		writer := &captureWriter{}
		arch := NewArchiver(writer, store.Events(), 1, time.Hour, logger)

		n, err := arch.ArchiveEvents(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		require.Len(t, writer.paths, 1)
		assert.Contains(t, writer.paths[0], "archive/loan_events/")
		assert.Equal(t, 3, bytes.Count(writer.bodies[0], []byte("\n")))

		remaining, err := store.Events().List(ctx, domain.ListOpts{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("LeavesFreshEvents", func(t *testing.T) {
		store := memory.New()
		seedEvents(t, store, time.Now().Add(-time.Hour), 2)

		writer := &captureWriter{}
		arch := NewArchiver(writer, store.Events(), 1, time.Hour, logger)

		n, err := arch.ArchiveEvents(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, writer.paths)

		remaining, err := store.Events().List(ctx, domain.ListOpts{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, remaining, 2)
	})

	t.Run("FailedUploadKeepsRows", func(t *testing.T) {
		store := memory.New()
		seedEvents(t, store, time.Now().Add(-48*time.Hour), 2)

		writer := &captureWriter{fail: true}
		arch := NewArchiver(writer, store.Events(), 1, time.Hour, logger)

		_, err := arch.ArchiveEvents(ctx, time.Now().Add(-24*time.Hour))
		require.Error(t, err)

		remaining, err := store.Events().List(ctx, domain.ListOpts{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, remaining, 2)
	})
}
