package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

type captureSender struct {
	titles []string
	err    error
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func TestLoanEvent(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	borrower := domain.ID{31: 0x42}

	t.Run("DeliversAllowedEvent", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, []string{"settled"}, logger)

		err := n.LoanEvent(ctx, domain.LoanEvent{
			Borrower: borrower,
			Kind:     domain.LoanKindArbitrage,
			Event:    "settled",
			Amount:   1_000_000,
			Fee:      3_000,
			Profit:   44_232,
		})
		require.NoError(t, err)
		require.Len(t, sender.titles, 1)
		assert.Contains(t, sender.titles[0], "Loan settled")
	})

	t.Run("FiltersUnsubscribedEvent", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, []string{"settled"}, logger)

		err := n.LoanEvent(ctx, domain.LoanEvent{Borrower: borrower, Event: "opened"})
		require.NoError(t, err)
		assert.Empty(t, sender.titles)
	})

	t.Run("EmptyFilterPassesEverything", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, nil, logger)

		require.NoError(t, n.LoanEvent(ctx, domain.LoanEvent{Borrower: borrower, Event: "paused"}))
		require.Len(t, sender.titles, 1)
		assert.Equal(t, "Pool paused", sender.titles[0])
	})

	t.Run("SenderFailureSurfaces", func(t *testing.T) {
		failing := &captureSender{err: assert.AnError}
		working := &captureSender{}
		n := NewNotifier([]Sender{failing, working}, nil, logger)

		err := n.LoanEvent(ctx, domain.LoanEvent{Borrower: borrower, Event: "settled"})
		require.Error(t, err)
		// The failing sender does not block delivery to the rest.
		assert.Len(t, working.titles, 1)
	})
}
