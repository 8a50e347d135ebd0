package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/schoolfees/internal/models"
)

const busFeeSelect = `
SELECT b.id, b.student_id, b.academic_year_id, b.route_destination, b.amount, b.due_date, b.status, b.is_active,
       COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.student_bus_fee_id = b.id AND p.is_active = 1), 0),
       s.id, s.name, s.admission_no, s.class_id, s.section_id
FROM student_bus_fees b
LEFT JOIN students s ON s.id = b.student_id AND s.is_active = 1
`

func scanBusFee(row rowScanner) (*models.StudentBusFee, error) {
	fee := &models.StudentBusFee{}
	var due string
	var sid, sname, sadm, sclass, ssection sql.NullString
	if err := row.Scan(&fee.ID, &fee.StudentID, &fee.AcademicYearID, &fee.RouteDestination, &fee.Amount,
		&due, &fee.Status, &fee.IsActive, &fee.TotalPaidFees,
		&sid, &sname, &sadm, &sclass, &ssection); err != nil {
		return nil, err
	}
	var err error
	if fee.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	fee.Student = studentRef(sid, sname, sadm, sclass, ssection)
	return fee, nil
}

// CreateBusFee persists a new transport fee.
func (s *SQLiteStore) CreateBusFee(ctx context.Context, fee *models.StudentBusFee) error {
	if fee.ID == "" {
		fee.ID = uuid.New().String()
	}
	fee.IsActive = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_bus_fees (id, student_id, academic_year_id, route_destination, amount, due_date,
		                               status, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		fee.ID, fee.StudentID, fee.AcademicYearID, fee.RouteDestination, fee.Amount,
		formatDate(fee.DueDate), fee.Status, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bus fee: %w", err)
	}
	return nil
}

// GetBusFee retrieves an active transport fee by ID.
func (s *SQLiteStore) GetBusFee(ctx context.Context, id string) (*models.StudentBusFee, error) {
	fee, err := scanBusFee(s.db.QueryRowContext(ctx,
		busFeeSelect+" WHERE b.id = ? AND b.is_active = 1", id))
	if err == sql.ErrNoRows {
		return nil, notFound("bus fee", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bus fee: %w", err)
	}
	return fee, nil
}

// ListBusFees returns the active transport fees of an academic year.
func (s *SQLiteStore) ListBusFees(ctx context.Context, academicYearID string) ([]*models.StudentBusFee, error) {
	rows, err := s.db.QueryContext(ctx, busFeeSelect+`
		WHERE b.is_active = 1 AND (? = '' OR b.academic_year_id = ?)
		ORDER BY b.due_date, b.id`,
		academicYearID, academicYearID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus fees: %w", err)
	}
	defer rows.Close()

	out := []*models.StudentBusFee{}
	for rows.Next() {
		fee, err := scanBusFee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bus fee: %w", err)
		}
		out = append(out, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bus fees: %w", err)
	}
	return out, nil
}

// UpdateBusFeeStatus sets the stored status of an active transport fee.
func (s *SQLiteStore) UpdateBusFeeStatus(ctx context.Context, id string, status models.FeeStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE student_bus_fees SET status = ? WHERE id = ? AND is_active = 1", status, id)
	return execOne(res, err, "bus fee", id)
}
