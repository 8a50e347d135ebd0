package ledger

import (
	"cmp"
	"slices"

	"github.com/mmynk/schoolfees/internal/models"
)

// FeeView is a StudentFee with its derived ledger fields attached.
type FeeView struct {
	models.StudentFee

	TotalLateFees   float64                `json:"totalLateFees"`
	RemainingAmount float64                `json:"remainingAmount"`
	IsPending       bool                   `json:"isPending"`
	Payments        []models.Payment       `json:"payments"`
	LateFees        []models.LateFeeRecord `json:"lateFees"`
}

// Record returns the payable record for the view.
func (v FeeView) Record() FeeRecord {
	return TuitionRecord(v.StudentFee, v.LateFees)
}

// StudentGroup is every tuition fee of one student, most urgent first.
type StudentGroup struct {
	Student        models.StudentRef `json:"student"`
	Fees           []FeeView         `json:"fees"`
	HasMultiple    bool              `json:"hasMultiple"`
	TotalRemaining float64           `json:"totalRemaining"`
}

// GroupResult is the output of GroupStudentFees.
type GroupResult struct {
	Groups []StudentGroup `json:"groups"`
	// Dropped counts fees skipped because their student could not be
	// resolved.
	Dropped int `json:"dropped"`
}

// BusFeeView is a StudentBusFee with its derived ledger fields attached.
type BusFeeView struct {
	models.StudentBusFee

	RemainingAmount float64          `json:"remainingAmount"`
	IsPending       bool             `json:"isPending"`
	Payments        []models.Payment `json:"payments"`
}

// Record returns the payable record for the view.
func (v BusFeeView) Record() FeeRecord {
	return BusRecord(v.StudentBusFee)
}

// BusGroup is every transport fee of one student.
type BusGroup struct {
	Student        models.StudentRef `json:"student"`
	Fees           []BusFeeView      `json:"fees"`
	HasMultiple    bool              `json:"hasMultiple"`
	TotalRemaining float64           `json:"totalRemaining"`
}

// BusGroupResult is the output of GroupBusFees.
type BusGroupResult struct {
	Groups  []BusGroup `json:"groups"`
	Dropped int        `json:"dropped"`
}

// GroupStudentFees groups fees by student and attaches totals.
//
// Algorithm:
//   - bucket fees by student ID, groups in order of first appearance
//   - per fee: collect its payments and late fees, derive totalPaid,
//     totalLateFees and remainingAmount
//   - sort each bucket by status priority, then ascending due date
//
// Fees whose Student is nil are dropped and counted in Dropped.
func GroupStudentFees(fees []models.StudentFee, payments []models.Payment, lateFees []models.LateFeeRecord) GroupResult {
	paymentsByFee := make(map[string][]models.Payment)
	for _, p := range payments {
		if p.StudentFeeID == "" {
			continue
		}
		paymentsByFee[p.StudentFeeID] = append(paymentsByFee[p.StudentFeeID], p)
	}
	lateByFee := make(map[string][]models.LateFeeRecord)
	for _, lf := range lateFees {
		lateByFee[lf.StudentFeeID] = append(lateByFee[lf.StudentFeeID], lf)
	}

	result := GroupResult{Groups: []StudentGroup{}}
	index := make(map[string]int)
	for _, fee := range fees {
		if fee.Student == nil {
			result.Dropped++
			continue
		}

		view := FeeView{
			StudentFee: fee,
			Payments:   paymentsByFee[fee.ID],
			LateFees:   lateByFee[fee.ID],
		}
		// The server's TotalPaid stands when no payments were fetched
		// for this fee.
		if len(view.Payments) > 0 {
			view.TotalPaid = TotalPaid(view.Payments)
		}
		view.TotalLateFees = TotalLateFees(view.LateFees)
		view.RemainingAmount = Remaining(view.FeeTotalAmount, view.TotalLateFees, view.TotalPaid)
		view.IsPending = view.RemainingAmount > 0

		i, ok := index[fee.Student.ID]
		if !ok {
			i = len(result.Groups)
			index[fee.Student.ID] = i
			result.Groups = append(result.Groups, StudentGroup{Student: *fee.Student})
		}
		result.Groups[i].Fees = append(result.Groups[i].Fees, view)
	}

	for i := range result.Groups {
		g := &result.Groups[i]
		slices.SortStableFunc(g.Fees, func(a, b FeeView) int {
			return compareFees(a.Status, b.Status, a.DueDate.Unix(), b.DueDate.Unix())
		})
		g.HasMultiple = len(g.Fees) > 1
		var total float64
		for _, f := range g.Fees {
			total += f.RemainingAmount
		}
		g.TotalRemaining = Round2(total)
	}
	return result
}

// GroupBusFees is GroupStudentFees for transport fees, which have no late
// fees.
func GroupBusFees(fees []models.StudentBusFee, payments []models.Payment) BusGroupResult {
	paymentsByFee := make(map[string][]models.Payment)
	for _, p := range payments {
		if p.StudentBusFeeID == "" {
			continue
		}
		paymentsByFee[p.StudentBusFeeID] = append(paymentsByFee[p.StudentBusFeeID], p)
	}

	result := BusGroupResult{Groups: []BusGroup{}}
	index := make(map[string]int)
	for _, fee := range fees {
		if fee.Student == nil {
			result.Dropped++
			continue
		}

		view := BusFeeView{StudentBusFee: fee, Payments: paymentsByFee[fee.ID]}
		if len(view.Payments) > 0 {
			view.TotalPaidFees = TotalPaid(view.Payments)
		}
		view.RemainingAmount = Remaining(view.Amount, 0, view.TotalPaidFees)
		view.IsPending = view.RemainingAmount > 0

		i, ok := index[fee.Student.ID]
		if !ok {
			i = len(result.Groups)
			index[fee.Student.ID] = i
			result.Groups = append(result.Groups, BusGroup{Student: *fee.Student})
		}
		result.Groups[i].Fees = append(result.Groups[i].Fees, view)
	}

	for i := range result.Groups {
		g := &result.Groups[i]
		slices.SortStableFunc(g.Fees, func(a, b BusFeeView) int {
			return compareFees(a.Status, b.Status, a.DueDate.Unix(), b.DueDate.Unix())
		})
		g.HasMultiple = len(g.Fees) > 1
		var total float64
		for _, f := range g.Fees {
			total += f.RemainingAmount
		}
		g.TotalRemaining = Round2(total)
	}
	return result
}

func compareFees(sa, sb models.FeeStatus, da, db int64) int {
	if c := cmp.Compare(StatusPriority(sa), StatusPriority(sb)); c != 0 {
		return c
	}
	return cmp.Compare(da, db)
}
