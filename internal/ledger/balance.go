package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/schoolfees/internal/models"
)

func lateFeesDec(records []models.LateFeeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.IsWaived {
			continue
		}
		total = total.Add(nonNegative(r.LateFeeAmount))
	}
	return total
}

func paidDec(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(nonNegative(p.Amount))
	}
	return total
}

func remainingDec(base, late, paid decimal.Decimal) decimal.Decimal {
	r := base.Add(late).Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// TotalLateFees sums the unwaived late fees in records.
// Waived records are excluded entirely; an empty slice yields 0.
func TotalLateFees(records []models.LateFeeRecord) float64 {
	return toFloat(lateFeesDec(records))
}

// TotalPaid sums payments. Callers pass the non-deleted set, as returned
// by the payment listing; IsActive is not consulted.
func TotalPaid(payments []models.Payment) float64 {
	return toFloat(paidDec(payments))
}

// Required is what the fee asks for in total: base plus late fees.
func Required(base, lateFees float64) float64 {
	return toFloat(nonNegative(base).Add(nonNegative(lateFees)))
}

// Remaining computes max(0, (base + lateFees) - paid).
//
// Negative or non-finite inputs are treated as 0. Overpayment is clamped
// to zero; there is no credit balance.
func Remaining(base, lateFees, paid float64) float64 {
	return toFloat(remainingDec(nonNegative(base), nonNegative(lateFees), nonNegative(paid)))
}

// ApplyDiscount reduces amount by d, never below zero.
func ApplyDiscount(d models.DiscountType, amount float64) float64 {
	a := nonNegative(amount)
	v := nonNegative(d.Value)
	var off decimal.Decimal
	switch d.Kind {
	case models.DiscountPercentage:
		if v.GreaterThan(decimal.NewFromInt(100)) {
			v = decimal.NewFromInt(100)
		}
		off = a.Mul(v).Div(decimal.NewFromInt(100)).Round(2)
	case models.DiscountFlat:
		off = v
	}
	return toFloat(remainingDec(a, decimal.Zero, off))
}

// SplitInstallments divides total into n equal installments. Cents that
// do not divide evenly go to the last installment so the parts always sum
// to the rounded total.
func SplitInstallments(total float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	t := nonNegative(total)
	part := t.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	out := make([]float64, n)
	for i := 0; i < n-1; i++ {
		out[i] = toFloat(part)
	}
	out[n-1] = toFloat(t.Sub(part.Mul(decimal.NewFromInt(int64(n - 1)))))
	return out
}
