// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/schoolfees/internal/models"
)

// ErrNotFound is wrapped by every lookup that finds no active record.
var ErrNotFound = errors.New("not found")

// StudentFeeFilter narrows ListStudentFees. Empty fields match everything.
type StudentFeeFilter struct {
	AcademicYearID string
	ClassID        string
	SectionID      string
	StudentID      string
}

// PaymentFilter narrows ListPayments. Bus selects transport payments
// instead of tuition payments.
type PaymentFilter struct {
	Bus             bool
	StudentFeeID    string
	StudentBusFeeID string
}

// Store defines the interface for fee ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Records are never hard-deleted; Deactivate* clears IsActive and list
// methods return active records only.
type Store interface {
	CreateFeeType(ctx context.Context, ft *models.FeeType) error
	ListFeeTypes(ctx context.Context) ([]*models.FeeType, error)

	CreateDiscountType(ctx context.Context, d *models.DiscountType) error
	GetDiscountType(ctx context.Context, id string) (*models.DiscountType, error)
	ListDiscountTypes(ctx context.Context) ([]*models.DiscountType, error)

	// CreateFeeStructure persists a structure with its sections, amounts
	// and due dates. The structure.ID field will be populated by the store.
	CreateFeeStructure(ctx context.Context, fs *models.FeeStructure) error
	GetFeeStructure(ctx context.Context, id string) (*models.FeeStructure, error)
	ListFeeStructures(ctx context.Context, academicYearID string) ([]*models.FeeStructure, error)

	CreateLateFeeRule(ctx context.Context, rule *models.LateFeeRule) error
	GetLateFeeRule(ctx context.Context, id string) (*models.LateFeeRule, error)
	ListLateFeeRules(ctx context.Context, academicYearID string) ([]*models.LateFeeRule, error)

	CreateStudent(ctx context.Context, s *models.StudentRef) error
	ListStudents(ctx context.Context) ([]*models.StudentRef, error)

	// CreateStudentFee assigns an installment to a student.
	CreateStudentFee(ctx context.Context, fee *models.StudentFee) error
	// GetStudentFee returns the fee with TotalPaid summed from active
	// payments and Student joined when resolvable.
	GetStudentFee(ctx context.Context, id string) (*models.StudentFee, error)
	ListStudentFees(ctx context.Context, filter StudentFeeFilter) ([]*models.StudentFee, error)
	UpdateStudentFeeStatus(ctx context.Context, id string, status models.FeeStatus) error
	DeactivateStudentFee(ctx context.Context, id string) error

	CreateBusFee(ctx context.Context, fee *models.StudentBusFee) error
	GetBusFee(ctx context.Context, id string) (*models.StudentBusFee, error)
	ListBusFees(ctx context.Context, academicYearID string) ([]*models.StudentBusFee, error)
	UpdateBusFeeStatus(ctx context.Context, id string, status models.FeeStatus) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error)
	DeactivatePayment(ctx context.Context, id string) error

	// SettlePayment creates (p.ID empty) or updates the payment and sets
	// the owning fee's status in a single transaction.
	SettlePayment(ctx context.Context, p *models.Payment, status models.FeeStatus) error

	// CreateLateFeeRecord inserts the record. It reports false without
	// error when the fee already carries a record for the same rule.
	CreateLateFeeRecord(ctx context.Context, r *models.LateFeeRecord) (bool, error)
	ListLateFeeRecords(ctx context.Context, studentFeeID string) ([]*models.LateFeeRecord, error)
	WaiveLateFee(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
