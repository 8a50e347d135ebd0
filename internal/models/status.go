package models

// FeeStatus is the stored status of a tuition or bus fee.
// The server owns it; clients only mirror StatusAfterPayment results back.
type FeeStatus string

const (
	StatusNotStarted FeeStatus = "not_started"
	StatusPending    FeeStatus = "pending"
	StatusOverdue    FeeStatus = "overdue"
	StatusPaid       FeeStatus = "paid"
)

// Valid reports whether s is one of the four known statuses.
func (s FeeStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusPending, StatusOverdue, StatusPaid:
		return true
	}
	return false
}
