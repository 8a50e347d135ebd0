package models

// FeeType is a chargeable category (tuition, library, lab...).
type FeeType struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// DiscountKind distinguishes percentage from flat discounts.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "PERCENTAGE"
	DiscountFlat       DiscountKind = "FLAT"
)

// DiscountType is a reusable discount definition.
type DiscountType struct {
	ID    string       `json:"id"`
	Kind  DiscountKind `json:"kind"`
	Value float64      `json:"value"`
}

// FeeTypeAmount is one line of a fee structure.
type FeeTypeAmount struct {
	FeeTypeID string  `json:"feeTypeId"`
	Amount    float64 `json:"amount"`
}

// FeeStructure is the template of what a class (and optionally some of its
// sections) owes for one installment of an academic year.
type FeeStructure struct {
	// ID is the unique identifier (UUID format).
	ID string `json:"id"`

	ClassID        string   `json:"classId"`
	SectionIDs     []string `json:"sectionIds"`
	AcademicYearID string   `json:"academicYearId"`

	// InstallmentLabel names the slice of the year, e.g. "Term 1".
	InstallmentLabel string `json:"installmentLabel"`

	FeeTypeAmounts []FeeTypeAmount `json:"feeTypeAmounts"`

	// TotalAmount is the sum of FeeTypeAmounts unless set explicitly.
	TotalAmount float64 `json:"totalAmount"`

	// DueDates holds one date per installment, formatted 2006-01-02.
	DueDates []string `json:"dueDates"`

	CreatedAt int64 `json:"createdAt"`
}

// LateFeeRule charges a flat amount to overdue fees of the listed classes.
type LateFeeRule struct {
	ID             string   `json:"id"`
	ClassIDs       []string `json:"classIds"`
	AcademicYearID string   `json:"academicYearId"`
	Amount         float64  `json:"amount"`
}

// LateFeeRecord is a late fee applied to one student fee.
// Waived records never count toward the balance.
type LateFeeRecord struct {
	ID            string  `json:"id"`
	StudentFeeID  string  `json:"studentFeeId"`
	LateFeeRuleID string  `json:"lateFeeRuleId,omitempty"`
	LateFeeAmount float64 `json:"lateFeeAmount"`
	IsWaived      bool    `json:"isWaived"`
}
