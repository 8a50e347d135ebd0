package models

import "time"

// PaymentMode is how the money was received.
type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeCard   PaymentMode = "card"
	ModeUPI    PaymentMode = "upi"
	ModeBank   PaymentMode = "bank_transfer"
	ModeCheque PaymentMode = "cheque"
)

// Payment is money received against either a tuition fee or a bus fee.
// Exactly one of StudentFeeID and StudentBusFeeID is set.
//
// Payments are append-only; an edit rewrites Amount/Mode/PaidOn and a
// delete clears IsActive.
type Payment struct {
	ID              string      `json:"id"`
	StudentFeeID    string      `json:"studentFeeId,omitempty"`
	StudentBusFeeID string      `json:"studentBusFeeId,omitempty"`
	FeesStructureID string      `json:"feesStructureId,omitempty"`
	Amount          float64     `json:"amount"`
	Mode            PaymentMode `json:"mode"`
	PaidOn          time.Time   `json:"paidOn"`
	IsActive        bool        `json:"isActive"`
	CreatedAt       int64       `json:"createdAt"`
}

// FeeID returns whichever fee the payment is attached to.
func (p *Payment) FeeID() string {
	if p.StudentFeeID != "" {
		return p.StudentFeeID
	}
	return p.StudentBusFeeID
}
