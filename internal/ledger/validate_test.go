package ledger

import (
	"errors"
	"testing"

	"github.com/mmynk/schoolfees/internal/models"
)

func tuition(base, late, paid float64) FeeRecord {
	return FeeRecord{Kind: KindTuition, ID: "fee-1", Base: base, LateFees: late, Paid: paid}
}

func TestValidatePayment_NewPartial(t *testing.T) {
	record := tuition(1000, 50, 300)

	tests := []struct {
		name    string
		amount  string
		wantErr error
		want    PaymentDecision
	}{
		{name: "zero rejected", amount: "0", wantErr: ErrInvalidAmount},
		{name: "garbage rejected", amount: "ten", wantErr: ErrInvalidAmount},
		{name: "three decimals rejected", amount: "10.001", wantErr: ErrInvalidAmount},
		{name: "over remaining rejected", amount: "750.01", wantErr: ErrExceedsRemaining},
		{name: "partial accepted", amount: "250", want: PaymentDecision{Amount: 250, RemainingAfter: 500, Status: models.StatusPending}},
		{name: "exact remaining accepted", amount: "750", want: PaymentDecision{Amount: 750, RemainingAfter: 0, Status: models.StatusPaid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePayment(PaymentCheck{Record: record, Amount: tt.amount})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidatePayment() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidatePayment() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidatePayment() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidatePayment_FullUsesCurrentRemaining(t *testing.T) {
	got, err := ValidatePayment(PaymentCheck{Record: tuition(1000, 50, 300), Amount: "1", Full: true})
	if err != nil {
		t.Fatalf("ValidatePayment failed: %v", err)
	}
	if got.Amount != 750 || got.Status != models.StatusPaid {
		t.Errorf("full payment = %+v, want 750 paid", got)
	}

	_, err = ValidatePayment(PaymentCheck{Record: tuition(1000, 0, 1000), Full: true})
	if !errors.Is(err, ErrNothingDue) {
		t.Errorf("expected ErrNothingDue, got %v", err)
	}
}

func TestValidatePayment_Edit(t *testing.T) {
	record := FeeRecord{Kind: KindTuition, ID: "fee-1", Base: 1000, Paid: 500}
	editing := &models.Payment{ID: "p1", StudentFeeID: "fee-1", Amount: 200, IsActive: true}

	_, err := ValidatePayment(PaymentCheck{Record: record, Amount: "800", Editing: editing})
	if !errors.Is(err, ErrExceedsMaxAllowed) {
		t.Errorf("800 on top of 300: expected ErrExceedsMaxAllowed, got %v", err)
	}

	got, err := ValidatePayment(PaymentCheck{Record: record, Amount: "700", Editing: editing})
	if err != nil {
		t.Fatalf("700 on top of 300 should be accepted: %v", err)
	}
	if got.RemainingAfter != 0 || got.Status != models.StatusPaid {
		t.Errorf("edit decision = %+v, want remaining 0 and paid", got)
	}

	got, err = ValidatePayment(PaymentCheck{Record: record, Amount: "100", Editing: editing})
	if err != nil {
		t.Fatalf("shrinking an edit failed: %v", err)
	}
	if got.RemainingAfter != 600 || got.Status != models.StatusPending {
		t.Errorf("edit decision = %+v, want remaining 600 and pending", got)
	}

	_, err = ValidatePayment(PaymentCheck{Record: record, Amount: "0", Editing: editing})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero edit, got %v", err)
	}
}

func TestValidatePayment_EditIncludesLateFees(t *testing.T) {
	record := FeeRecord{Kind: KindTuition, ID: "fee-1", Base: 1000, LateFees: 50, Paid: 1000}
	editing := &models.Payment{ID: "p1", StudentFeeID: "fee-1", Amount: 1000}

	if _, err := ValidatePayment(PaymentCheck{Record: record, Amount: "1050", Editing: editing}); err != nil {
		t.Errorf("1050 against max 1050 should pass: %v", err)
	}
	if _, err := ValidatePayment(PaymentCheck{Record: record, Amount: "1050.01", Editing: editing}); !errors.Is(err, ErrExceedsMaxAllowed) {
		t.Errorf("expected ErrExceedsMaxAllowed, got %v", err)
	}
}

func TestValidatePayment_EditBusUsesFlatAmount(t *testing.T) {
	record := BusRecord(models.StudentBusFee{ID: "bus-1", Amount: 600, TotalPaidFees: 600, RouteDestination: "East"})
	editing := &models.Payment{ID: "p9", StudentBusFeeID: "bus-1", Amount: 600}

	if _, err := ValidatePayment(PaymentCheck{Record: record, Amount: "601", Editing: editing}); !errors.Is(err, ErrExceedsMaxAllowed) {
		t.Errorf("expected ErrExceedsMaxAllowed, got %v", err)
	}
	got, err := ValidatePayment(PaymentCheck{Record: record, Amount: "450", Editing: editing})
	if err != nil {
		t.Fatalf("ValidatePayment failed: %v", err)
	}
	if got.RemainingAfter != 150 {
		t.Errorf("RemainingAfter = %v, want 150", got.RemainingAfter)
	}
}

func TestValidatePayment_EditWrongFee(t *testing.T) {
	editing := &models.Payment{ID: "p1", StudentFeeID: "other", Amount: 10}
	_, err := ValidatePayment(PaymentCheck{Record: tuition(100, 0, 10), Amount: "5", Editing: editing})
	if !errors.Is(err, ErrPaymentMismatch) {
		t.Errorf("expected ErrPaymentMismatch, got %v", err)
	}
}

func TestValidatePayment_BusNew(t *testing.T) {
	record := BusRecord(models.StudentBusFee{ID: "bus-1", Amount: 600, TotalPaidFees: 100})
	if _, err := ValidatePayment(PaymentCheck{Record: record, Amount: "501"}); !errors.Is(err, ErrExceedsRemaining) {
		t.Errorf("expected ErrExceedsRemaining, got %v", err)
	}
	got, err := ValidatePayment(PaymentCheck{Record: record, Full: true})
	if err != nil || got.Amount != 500 {
		t.Errorf("full bus payment = %+v, %v", got, err)
	}
}
