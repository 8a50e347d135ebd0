package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/schoolfees/internal/models"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a positive number with at most two decimals")
	ErrExceedsRemaining  = errors.New("amount cannot exceed remaining amount")
	ErrExceedsMaxAllowed = errors.New("total payments cannot exceed the fee amount")
	ErrNothingDue        = errors.New("nothing is due on this fee")
	ErrPaymentMismatch   = errors.New("payment does not belong to this fee")
)

// PaymentCheck is a proposed payment against one fee record.
type PaymentCheck struct {
	Record FeeRecord

	// Amount is the raw user input. Ignored when Full is set.
	Amount string

	// Full pays whatever is currently outstanding. The amount is taken
	// from Record at the time of the check, never from an earlier value.
	Full bool

	// Editing is the payment being modified, nil for a new payment.
	Editing *models.Payment
}

// PaymentDecision is an accepted payment and its effect on the fee.
type PaymentDecision struct {
	Amount         float64          `json:"amount"`
	RemainingAfter float64          `json:"remainingAfter"`
	Status         models.FeeStatus `json:"status"`
}

// ValidatePayment checks a proposed payment.
//
// New payments must satisfy 0 < amount <= remaining. Edits must satisfy
// amount > 0 and (paid - editing.Amount) + amount <= MaxAllowed, so an
// edit can never push the fee beyond fully funded.
func ValidatePayment(c PaymentCheck) (PaymentDecision, error) {
	maxAllowed := dec(c.Record.MaxAllowed())
	paid := nonNegative(c.Record.Paid)

	if c.Editing != nil {
		if c.Editing.FeeID() != c.Record.ID {
			return PaymentDecision{}, fmt.Errorf("%w: payment %s", ErrPaymentMismatch, c.Editing.ID)
		}
		others := paid.Sub(nonNegative(c.Editing.Amount))
		if others.IsNegative() {
			others = decimal.Zero
		}
		room := maxAllowed.Sub(others)

		var amount decimal.Decimal
		if c.Full {
			if room.Sign() <= 0 {
				return PaymentDecision{}, ErrNothingDue
			}
			amount = room
		} else {
			var err error
			if amount, err = ParseAmount(c.Amount); err != nil {
				return PaymentDecision{}, err
			}
			if amount.GreaterThan(room) {
				return PaymentDecision{}, fmt.Errorf("%w: %s already paid, %s allowed",
					ErrExceedsMaxAllowed, others.StringFixed(2), maxAllowed.StringFixed(2))
			}
		}
		return decide(amount, room.Sub(amount)), nil
	}

	remaining := remainingDec(maxAllowed, decimal.Zero, paid)

	if c.Full {
		if remaining.Sign() <= 0 {
			return PaymentDecision{}, ErrNothingDue
		}
		return decide(remaining, decimal.Zero), nil
	}

	amount, err := ParseAmount(c.Amount)
	if err != nil {
		return PaymentDecision{}, err
	}
	if amount.GreaterThan(remaining) {
		return PaymentDecision{}, fmt.Errorf("%w (%s)", ErrExceedsRemaining, remaining.StringFixed(2))
	}
	return decide(amount, remaining.Sub(amount)), nil
}

func decide(amount, after decimal.Decimal) PaymentDecision {
	rest := toFloat(after)
	return PaymentDecision{
		Amount:         toFloat(amount),
		RemainingAfter: rest,
		Status:         StatusAfterPayment(rest),
	}
}
