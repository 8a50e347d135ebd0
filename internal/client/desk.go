package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/schoolfees/internal/auth"
	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/models"
)

// StatusUpdateError reports a payment that was written while the
// following status write failed. Nothing is rolled back: the payment
// stands and the stored status is stale until the next write or listing.
type StatusUpdateError struct {
	Payment *models.Payment
	Status  models.FeeStatus
	Err     error
}

func (e *StatusUpdateError) Error() string {
	return fmt.Sprintf("payment %s recorded but status %s was not saved: %v", e.Payment.ID, e.Status, e.Err)
}

func (e *StatusUpdateError) Unwrap() error { return e.Err }

// Desk is the fee collection workflow for one signed-in staff member.
type Desk struct {
	api     *Client
	session auth.Session
	now     func() time.Time
}

// NewDesk creates a desk acting as session through api.
func NewDesk(api *Client, session auth.Session) *Desk {
	return &Desk{api: api, session: session, now: time.Now}
}

// Ledger fetches fees, payments and late fees and groups them by student.
// The three fetches run concurrently; any failure cancels the others.
func (d *Desk) Ledger(ctx context.Context, q Query) (ledger.GroupResult, error) {
	var (
		fees     []models.StudentFee
		payments []models.Payment
		lateFees []models.LateFeeRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fees, err = d.api.StudentFees(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		payments, err = d.api.Payments(gctx, false)
		return err
	})
	g.Go(func() (err error) {
		lateFees, err = d.api.LateFees(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ledger.GroupResult{}, err
	}

	result := ledger.GroupStudentFees(fees, payments, lateFees)
	if result.Dropped > 0 {
		slog.Warn("Fees without a student were left out of the ledger", "dropped", result.Dropped)
	}
	return result, nil
}

// BusLedger fetches transport fees and their payments and groups them by
// student.
func (d *Desk) BusLedger(ctx context.Context, academicYearID string) (ledger.BusGroupResult, error) {
	var (
		fees     []models.StudentBusFee
		payments []models.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fees, err = d.api.BusFees(gctx, academicYearID)
		return err
	})
	g.Go(func() (err error) {
		payments, err = d.api.Payments(gctx, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return ledger.BusGroupResult{}, err
	}

	result := ledger.GroupBusFees(fees, payments)
	if result.Dropped > 0 {
		slog.Warn("Bus fees without a student were left out of the ledger", "dropped", result.Dropped)
	}
	return result, nil
}

// PaymentInput is a payment entered at the desk.
type PaymentInput struct {
	// Record is the fee being paid, taken from the latest ledger.
	Record ledger.FeeRecord
	// Amount is the raw amount typed by the user. Ignored when Full is set.
	Amount string
	// Full pays the whole outstanding balance of Record.
	Full bool
	Mode models.PaymentMode
	// PaidOn defaults to today.
	PaidOn time.Time
	// Editing is the payment being changed, nil for a new payment.
	Editing *models.Payment
	// Refresh selects the ledger refetched after the payment.
	Refresh Query
}

// PaymentResult is the outcome of a successful Pay.
type PaymentResult struct {
	Payment  *models.Payment
	Decision ledger.PaymentDecision
	// Ledger is set after a tuition payment, BusLedger after a transport one.
	Ledger    *ledger.GroupResult
	BusLedger *ledger.BusGroupResult
}

// Pay validates and records a payment, then stores the resulting status
// and refetches the ledger.
//
// The payment write and the status write are separate requests. If the
// second fails the error is a *StatusUpdateError and the payment is kept.
func (d *Desk) Pay(ctx context.Context, in PaymentInput) (PaymentResult, error) {
	if err := d.session.RequireCollector(); err != nil {
		return PaymentResult{}, err
	}
	if in.Mode == "" {
		in.Mode = models.ModeCash
	}

	decision, err := ledger.ValidatePayment(ledger.PaymentCheck{
		Record:  in.Record,
		Amount:  in.Amount,
		Full:    in.Full,
		Editing: in.Editing,
	})
	if err != nil {
		return PaymentResult{}, err
	}

	paidOn := in.PaidOn
	if paidOn.IsZero() {
		paidOn = d.now()
	}
	body := PaymentBody{
		FeesStructureID: in.Record.FeeStructureID,
		Amount:          decision.Amount,
		PaidOn:          paidOn.Format(ledger.DateLayout),
		Mode:            in.Mode,
	}
	if in.Record.Kind == ledger.KindBus {
		body.StudentBusFeeID = in.Record.ID
	} else {
		body.StudentFeeID = in.Record.ID
	}

	var p *models.Payment
	if in.Editing != nil {
		p, err = d.api.UpdatePayment(ctx, in.Record.Kind, in.Editing.ID, body)
	} else {
		p, err = d.api.CreatePayment(ctx, in.Record.Kind, body)
	}
	if err != nil {
		return PaymentResult{}, err
	}
	slog.Info("Payment recorded",
		"payment_id", p.ID,
		"fee_id", in.Record.ID,
		"amount", p.Amount,
		"user_id", d.session.UserID,
	)

	if err := d.api.UpdateStatus(ctx, in.Record.Kind, in.Record.ID, decision.Status); err != nil {
		slog.Error("Status update failed after payment",
			"payment_id", p.ID,
			"fee_id", in.Record.ID,
			"status", decision.Status,
			"error", err,
		)
		return PaymentResult{}, &StatusUpdateError{Payment: p, Status: decision.Status, Err: err}
	}

	result := PaymentResult{Payment: p, Decision: decision}
	if in.Record.Kind == ledger.KindBus {
		bus, err := d.BusLedger(ctx, in.Refresh.AcademicYearID)
		if err != nil {
			return result, fmt.Errorf("payment recorded, refresh failed: %w", err)
		}
		result.BusLedger = &bus
		return result, nil
	}
	tuition, err := d.Ledger(ctx, in.Refresh)
	if err != nil {
		return result, fmt.Errorf("payment recorded, refresh failed: %w", err)
	}
	result.Ledger = &tuition
	return result, nil
}

// IsAPIError reports whether err carries an *APIError with the status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
