package ledger

import (
	"time"

	"github.com/mmynk/schoolfees/internal/models"
)

// StatusAfterPayment is the status the server records once a payment has
// been written: paid when nothing remains, pending otherwise. It never
// yields overdue or not_started.
func StatusAfterPayment(remaining float64) models.FeeStatus {
	if dec(remaining).Sign() <= 0 {
		return models.StatusPaid
	}
	return models.StatusPending
}

// StatusPriority orders statuses for display: overdue first, then
// pending, not_started, paid, and anything unrecognised last.
func StatusPriority(s models.FeeStatus) int {
	switch s {
	case models.StatusOverdue:
		return 0
	case models.StatusPending:
		return 1
	case models.StatusNotStarted:
		return 2
	case models.StatusPaid:
		return 3
	default:
		return 4
	}
}

// ServerStatus is the status reported to clients when listing fees.
//
// It depends on the server's clock and is the only place overdue is
// derived. Clients must not call it; they take overdue from the server's
// response.
func ServerStatus(stored models.FeeStatus, remaining float64, due, now time.Time) models.FeeStatus {
	if dec(remaining).Sign() <= 0 {
		return models.StatusPaid
	}
	if !due.IsZero() && dateOnly(due).Before(dateOnly(now)) {
		return models.StatusOverdue
	}
	if stored == models.StatusNotStarted {
		return models.StatusNotStarted
	}
	return models.StatusPending
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
