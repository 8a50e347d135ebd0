package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/metrics"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

type paymentRequest struct {
	StudentFeeID    string             `json:"studentFeeId"`
	StudentBusFeeID string             `json:"studentBusFeeId"`
	FeesStructureID string             `json:"feesStructureId"`
	Amount          float64            `json:"amount" validate:"gt=0"`
	PaidOn          string             `json:"paidOn" validate:"omitempty,datetime=2006-01-02"`
	Mode            models.PaymentMode `json:"mode" validate:"required,oneof=cash card upi bank_transfer cheque"`
}

type settleRequest struct {
	// ID selects the payment to edit. Empty records a new payment.
	ID string `json:"id"`
	paymentRequest
}

// SettleResponse is returned by the settle endpoint.
type SettleResponse struct {
	Payment  *models.Payment        `json:"payment"`
	Decision ledger.PaymentDecision `json:"decision"`
}

// feeID returns the fee the request targets and its kind.
func (p paymentRequest) feeID() (ledger.Kind, string, error) {
	switch {
	case p.StudentFeeID != "" && p.StudentBusFeeID != "":
		return "", "", badRequest("only one of studentFeeId and studentBusFeeId may be set")
	case p.StudentFeeID != "":
		return ledger.KindTuition, p.StudentFeeID, nil
	case p.StudentBusFeeID != "":
		return ledger.KindBus, p.StudentBusFeeID, nil
	}
	return "", "", badRequest("studentFeeId or studentBusFeeId is required")
}

// formatAmount renders a JSON amount the way a user would type it, so the
// ledger's two-decimal rule applies to API callers too.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// loadRecord fetches the current payable view of a fee.
func (s *FeeService) loadRecord(ctx context.Context, kind ledger.Kind, id string) (ledger.FeeRecord, error) {
	if kind == ledger.KindBus {
		fee, err := s.store.GetBusFee(ctx, id)
		if err != nil {
			return ledger.FeeRecord{}, err
		}
		return ledger.BusRecord(*fee), nil
	}

	fee, err := s.store.GetStudentFee(ctx, id)
	if err != nil {
		return ledger.FeeRecord{}, err
	}
	lateFees, err := s.store.ListLateFeeRecords(ctx, id)
	if err != nil {
		return ledger.FeeRecord{}, err
	}
	return ledger.TuitionRecord(*fee, values(lateFees)), nil
}

// checkPayment validates a payment request against the stored fee. editing
// is the payment being changed, nil for a new one.
func (s *FeeService) checkPayment(ctx context.Context, req paymentRequest, editing *models.Payment) (ledger.Kind, ledger.PaymentDecision, error) {
	kind, id, err := req.feeID()
	if err != nil {
		return "", ledger.PaymentDecision{}, err
	}
	rec, err := s.loadRecord(ctx, kind, id)
	if err != nil {
		return kind, ledger.PaymentDecision{}, err
	}
	decision, err := ledger.ValidatePayment(ledger.PaymentCheck{
		Record:  rec,
		Amount:  formatAmount(req.Amount),
		Editing: editing,
	})
	if err != nil {
		metrics.PaymentRejected(string(kind))
		return kind, ledger.PaymentDecision{}, err
	}
	return kind, decision, nil
}

// applyRequest copies the editable fields of req onto p.
func (s *FeeService) applyRequest(p *models.Payment, req paymentRequest, amount float64) error {
	paidOn := s.now()
	if req.PaidOn != "" {
		var err error
		if paidOn, err = ledger.ParseDate(req.PaidOn); err != nil {
			return err
		}
	}
	p.Amount = amount
	p.Mode = req.Mode
	p.PaidOn = paidOn
	if req.FeesStructureID != "" {
		p.FeesStructureID = req.FeesStructureID
	}
	return nil
}

// editablePayment loads the payment named by ?id= and checks it belongs to
// the fee the request targets.
func (s *FeeService) editablePayment(ctx context.Context, id string, req paymentRequest) (*models.Payment, error) {
	existing, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	_, feeID, err := req.feeID()
	if err != nil {
		return nil, err
	}
	if existing.FeeID() != feeID {
		return nil, errors.Join(ledger.ErrPaymentMismatch, badRequest("payment %s", id))
	}
	return existing, nil
}

func (s *FeeService) listPayments(w http.ResponseWriter, r *http.Request, bus bool) {
	q := r.URL.Query()
	payments, err := s.store.ListPayments(r.Context(), storage.PaymentFilter{
		Bus:             bus,
		StudentFeeID:    q.Get("studentFeeId"),
		StudentBusFeeID: q.Get("studentBusFeeId"),
	})
	if err != nil {
		writeError(w, "ListPayments", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *FeeService) listTuitionPayments(w http.ResponseWriter, r *http.Request) {
	s.listPayments(w, r, false)
}

func (s *FeeService) listBusPayments(w http.ResponseWriter, r *http.Request) {
	s.listPayments(w, r, true)
}

// createPayment records a payment. The fee status is left to the caller,
// which follows up with a status update.
func (s *FeeService) createPayment(w http.ResponseWriter, r *http.Request, want ledger.Kind) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "CreatePayment", err)
		return
	}
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreatePayment", err)
		return
	}
	if kind, _, err := req.feeID(); err != nil || kind != want {
		if err == nil {
			err = badRequest("this endpoint records %s payments", want)
		}
		writeError(w, "CreatePayment", err)
		return
	}

	kind, decision, err := s.checkPayment(ctx, req, nil)
	if err != nil {
		writeError(w, "CreatePayment", err)
		return
	}

	p := &models.Payment{
		StudentFeeID:    req.StudentFeeID,
		StudentBusFeeID: req.StudentBusFeeID,
		IsActive:        true,
	}
	if err := s.applyRequest(p, req, decision.Amount); err != nil {
		writeError(w, "CreatePayment", err)
		return
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		writeError(w, "CreatePayment", err)
		return
	}
	metrics.PaymentRecorded(string(kind), "create")

	slog.Info("Payment recorded",
		"payment_id", p.ID,
		"fee_id", p.FeeID(),
		"kind", kind,
		"amount", p.Amount,
		"mode", p.Mode,
		"user_id", middleware.GetUserID(ctx),
	)
	writeJSON(w, http.StatusCreated, p)
}

func (s *FeeService) createTuitionPayment(w http.ResponseWriter, r *http.Request) {
	s.createPayment(w, r, ledger.KindTuition)
}

func (s *FeeService) createBusPayment(w http.ResponseWriter, r *http.Request) {
	s.createPayment(w, r, ledger.KindBus)
}

// updatePayment edits the payment named by ?id=. The new amount may use
// the room freed by the payment's old amount, never more.
func (s *FeeService) updatePayment(w http.ResponseWriter, r *http.Request, want ledger.Kind) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	if kind, _, err := req.feeID(); err != nil || kind != want {
		if err == nil {
			err = badRequest("this endpoint edits %s payments", want)
		}
		writeError(w, "UpdatePayment", err)
		return
	}

	existing, err := s.editablePayment(ctx, id, req)
	if err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	kind, decision, err := s.checkPayment(ctx, req, existing)
	if err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	if err := s.applyRequest(existing, req, decision.Amount); err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	if err := s.store.UpdatePayment(ctx, existing); err != nil {
		writeError(w, "UpdatePayment", err)
		return
	}
	metrics.PaymentRecorded(string(kind), "update")

	slog.Info("Payment updated",
		"payment_id", existing.ID,
		"fee_id", existing.FeeID(),
		"amount", existing.Amount,
		"user_id", middleware.GetUserID(ctx),
	)
	writeJSON(w, http.StatusOK, existing)
}

func (s *FeeService) updateTuitionPayment(w http.ResponseWriter, r *http.Request) {
	s.updatePayment(w, r, ledger.KindTuition)
}

func (s *FeeService) updateBusPayment(w http.ResponseWriter, r *http.Request) {
	s.updatePayment(w, r, ledger.KindBus)
}

func (s *FeeService) deletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "DeletePayment", err)
		return
	}
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, "DeletePayment", err)
		return
	}
	if err := s.store.DeactivatePayment(ctx, id); err != nil {
		writeError(w, "DeletePayment", err)
		return
	}
	slog.Info("Payment deactivated", "payment_id", id, "user_id", middleware.GetUserID(ctx))
	w.WriteHeader(http.StatusNoContent)
}

// settlePayment records or edits a payment and stores the resulting fee
// status in one transaction.
func (s *FeeService) settlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "SettlePayment", err)
		return
	}
	var req settleRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "SettlePayment", err)
		return
	}

	var p *models.Payment
	if req.ID != "" {
		existing, err := s.editablePayment(ctx, req.ID, req.paymentRequest)
		if err != nil {
			writeError(w, "SettlePayment", err)
			return
		}
		p = existing
	}

	kind, decision, err := s.checkPayment(ctx, req.paymentRequest, p)
	if err != nil {
		writeError(w, "SettlePayment", err)
		return
	}

	if p == nil {
		p = &models.Payment{
			StudentFeeID:    req.StudentFeeID,
			StudentBusFeeID: req.StudentBusFeeID,
			IsActive:        true,
		}
	}
	if err := s.applyRequest(p, req.paymentRequest, decision.Amount); err != nil {
		writeError(w, "SettlePayment", err)
		return
	}
	if err := s.store.SettlePayment(ctx, p, decision.Status); err != nil {
		writeError(w, "SettlePayment", err)
		return
	}
	metrics.PaymentRecorded(string(kind), "settle")

	slog.Info("Payment settled",
		"payment_id", p.ID,
		"fee_id", p.FeeID(),
		"kind", kind,
		"amount", p.Amount,
		"status", decision.Status,
		"user_id", middleware.GetUserID(ctx),
	)
	writeJSON(w, http.StatusOK, SettleResponse{Payment: p, Decision: decision})
}
