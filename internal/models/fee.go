package models

import "time"

// StudentFee is one installment obligation for one student.
//
// Status is stored by the server but is never the source of truth for the
// balance: it must always be recomputable from
// (FeeTotalAmount + late fees) - TotalPaid.
type StudentFee struct {
	// ID is the unique identifier (UUID format).
	ID string `json:"id"`

	StudentID string `json:"studentId"`

	// Student is joined by the server. Nil when the student record is
	// missing or inactive.
	Student *StudentRef `json:"student,omitempty"`

	FeeStructureID string `json:"feeStructureId"`

	// AcademicYearID is copied from the fee structure on assignment.
	AcademicYearID string `json:"academicYearId"`

	DueDate time.Time `json:"dueDate"`

	Status FeeStatus `json:"status"`

	// TotalPaid is the sum of active payments against this fee.
	TotalPaid float64 `json:"totalPaid"`

	// FeeTotalAmount is the structure total owed for this installment,
	// after any discount applied at assignment time.
	FeeTotalAmount float64 `json:"feeTotalAmount"`

	IsBusTaken bool `json:"isBusTaken"`
	IsActive   bool `json:"isActive"`
}

// StudentBusFee is the transport ledger entry for one student.
// It mirrors StudentFee with a flat Amount and no late fees.
type StudentBusFee struct {
	ID               string      `json:"id"`
	StudentID        string      `json:"studentId"`
	Student          *StudentRef `json:"student,omitempty"`
	AcademicYearID   string      `json:"academicYearId"`
	RouteDestination string      `json:"routeDestination"`
	Amount           float64     `json:"amount"`
	DueDate          time.Time   `json:"dueDate"`
	Status           FeeStatus   `json:"status"`
	TotalPaidFees    float64     `json:"totalPaidFees"`
	IsActive         bool        `json:"isActive"`
}
