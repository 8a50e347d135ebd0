package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/models"
)

// buildReceipt assembles the receipt of one payment from the stored fee.
func (s *FeeService) buildReceipt(ctx context.Context, paymentID string) (ledger.Receipt, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return ledger.Receipt{}, err
	}

	receipt := ledger.Receipt{
		SchoolName: s.schoolName,
		Currency:   s.currency,
		Payment:    *p,
	}

	var student *models.StudentRef
	if p.StudentBusFeeID != "" {
		fee, err := s.store.GetBusFee(ctx, p.StudentBusFeeID)
		if err != nil {
			return ledger.Receipt{}, err
		}
		student = fee.Student
		receipt.Record = ledger.BusRecord(*fee)
	} else {
		fee, err := s.store.GetStudentFee(ctx, p.StudentFeeID)
		if err != nil {
			return ledger.Receipt{}, err
		}
		lateFees, err := s.store.ListLateFeeRecords(ctx, fee.ID)
		if err != nil {
			return ledger.Receipt{}, err
		}
		student = fee.Student
		receipt.Record = ledger.TuitionRecord(*fee, values(lateFees))
		if fs, err := s.store.GetFeeStructure(ctx, fee.FeeStructureID); err == nil {
			receipt.Installment = fs.InstallmentLabel
		}
	}
	if student != nil {
		receipt.Student = *student
	}
	return receipt, nil
}

func (s *FeeService) receipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("paymentId")
	receipt, err := s.buildReceipt(r.Context(), id)
	if err != nil {
		writeError(w, "Receipt", err)
		return
	}
	page, err := ledger.BuildReceipt(receipt)
	if err != nil {
		writeError(w, "Receipt", err)
		return
	}
	slog.Debug("Receipt rendered", "payment_id", id)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
