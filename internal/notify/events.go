package notify

import (
	"fmt"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// FormatLoanEvent renders a loan event as a notification title and message.
// The event name doubles as the Notifier filter key.
func FormatLoanEvent(ev domain.LoanEvent) (title, message string) {
	switch ev.Event {
	case "settled":
		title = fmt.Sprintf("Loan settled (%s)", ev.Kind)
		message = fmt.Sprintf("borrower %s repaid %d + %d fee, profit %d",
			ev.Borrower.Hex(), ev.Amount, ev.Fee, ev.Profit)
	case "opened":
		title = fmt.Sprintf("Loan opened (%s)", ev.Kind)
		message = fmt.Sprintf("borrower %s drew %d (fee %d)", ev.Borrower.Hex(), ev.Amount, ev.Fee)
	case "paused":
		title = "Pool paused"
		message = fmt.Sprintf("authority %s halted new loans", ev.Borrower.Hex())
	case "unpaused":
		title = "Pool unpaused"
		message = fmt.Sprintf("authority %s reopened the pool", ev.Borrower.Hex())
	case "emergency_withdraw":
		title = "Emergency withdrawal"
		message = fmt.Sprintf("authority %s withdrew %d", ev.Borrower.Hex(), ev.Amount)
	case "initialized":
		title = "Pool initialized"
		message = fmt.Sprintf("authority %s", ev.Borrower.Hex())
	default:
		title = "Loan event: " + ev.Event
		message = fmt.Sprintf("borrower %s amount %d", ev.Borrower.Hex(), ev.Amount)
	}
	return title, message
}
