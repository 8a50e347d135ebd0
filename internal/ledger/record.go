package ledger

import (
	"time"

	"github.com/mmynk/schoolfees/internal/models"
)

// Kind tells tuition fee records from transport ones.
type Kind string

const (
	KindTuition Kind = "tuition"
	KindBus     Kind = "bus"
)

// FeeRecord is the payable view of either a StudentFee or a StudentBusFee.
// It is resolved once when records are fetched so that validation and
// display never have to sniff fields to tell the two apart.
type FeeRecord struct {
	Kind      Kind             `json:"kind"`
	ID        string           `json:"id"`
	StudentID string           `json:"studentId"`
	Base      float64          `json:"base"`
	LateFees  float64          `json:"lateFees"`
	Paid      float64          `json:"paid"`
	DueDate   time.Time        `json:"dueDate"`
	Status    models.FeeStatus `json:"status"`

	// FeeStructureID is set for tuition records only.
	FeeStructureID string `json:"feeStructureId,omitempty"`
	// RouteDestination is set for bus records only.
	RouteDestination string `json:"routeDestination,omitempty"`
}

// TuitionRecord builds the record for a tuition fee. lateFees may contain
// records of other fees; only those matching fee.ID are counted.
func TuitionRecord(fee models.StudentFee, lateFees []models.LateFeeRecord) FeeRecord {
	var own []models.LateFeeRecord
	for _, lf := range lateFees {
		if lf.StudentFeeID == fee.ID {
			own = append(own, lf)
		}
	}
	return FeeRecord{
		Kind:           KindTuition,
		ID:             fee.ID,
		StudentID:      fee.StudentID,
		Base:           fee.FeeTotalAmount,
		LateFees:       TotalLateFees(own),
		Paid:           fee.TotalPaid,
		DueDate:        fee.DueDate,
		Status:         fee.Status,
		FeeStructureID: fee.FeeStructureID,
	}
}

// BusRecord builds the record for a transport fee.
func BusRecord(fee models.StudentBusFee) FeeRecord {
	return FeeRecord{
		Kind:             KindBus,
		ID:               fee.ID,
		StudentID:        fee.StudentID,
		Base:             fee.Amount,
		Paid:             fee.TotalPaidFees,
		DueDate:          fee.DueDate,
		Status:           fee.Status,
		RouteDestination: fee.RouteDestination,
	}
}

// Remaining is the outstanding balance of the record.
func (r FeeRecord) Remaining() float64 {
	return Remaining(r.Base, r.LateFees, r.Paid)
}

// MaxAllowed caps the sum of all payments against the record: base plus
// late fees for tuition, the flat amount for transport.
func (r FeeRecord) MaxAllowed() float64 {
	if r.Kind == KindBus {
		return toFloat(nonNegative(r.Base))
	}
	return Required(r.Base, r.LateFees)
}
