package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

// studentFeeSelect joins the student (active only) and sums active payments.
const studentFeeSelect = `
SELECT f.id, f.student_id, f.fee_structure_id, f.academic_year_id, f.due_date, f.status,
       f.fee_total_amount, f.is_bus_taken, f.is_active,
       COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.student_fee_id = f.id AND p.is_active = 1), 0),
       s.id, s.name, s.admission_no, s.class_id, s.section_id
FROM student_fees f
LEFT JOIN students s ON s.id = f.student_id AND s.is_active = 1
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudentFee(row rowScanner) (*models.StudentFee, error) {
	fee := &models.StudentFee{}
	var due string
	var sid, sname, sadm, sclass, ssection sql.NullString
	if err := row.Scan(&fee.ID, &fee.StudentID, &fee.FeeStructureID, &fee.AcademicYearID, &due, &fee.Status,
		&fee.FeeTotalAmount, &fee.IsBusTaken, &fee.IsActive, &fee.TotalPaid,
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

func studentRef(id, name, adm, class, section sql.NullString) *models.StudentRef {
	if !id.Valid {
		return nil
	}
	return &models.StudentRef{
		ID:          id.String,
		Name:        name.String,
		AdmissionNo: adm.String,
		ClassID:     class.String,
		SectionID:   section.String,
	}
}

// CreateStudentFee persists a new student fee.
func (s *SQLiteStore) CreateStudentFee(ctx context.Context, fee *models.StudentFee) error {
	if fee.ID == "" {
		fee.ID = uuid.New().String()
	}
	fee.IsActive = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_fees (id, student_id, fee_structure_id, academic_year_id, due_date, status,
		                           fee_total_amount, is_bus_taken, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		fee.ID, fee.StudentID, fee.FeeStructureID, fee.AcademicYearID, formatDate(fee.DueDate), fee.Status,
		fee.FeeTotalAmount, fee.IsBusTaken, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert student fee: %w", err)
	}
	return nil
}

// GetStudentFee retrieves an active student fee by ID.
func (s *SQLiteStore) GetStudentFee(ctx context.Context, id string) (*models.StudentFee, error) {
	fee, err := scanStudentFee(s.db.QueryRowContext(ctx,
		studentFeeSelect+" WHERE f.id = ? AND f.is_active = 1", id))
	if err == sql.ErrNoRows {
		return nil, notFound("student fee", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student fee: %w", err)
	}
	return fee, nil
}

// ListStudentFees returns active fees matching filter, ordered by due date.
// Class and section filters apply to the student's current placement.
func (s *SQLiteStore) ListStudentFees(ctx context.Context, filter storage.StudentFeeFilter) ([]*models.StudentFee, error) {
	rows, err := s.db.QueryContext(ctx, studentFeeSelect+`
		WHERE f.is_active = 1
		  AND (? = '' OR f.academic_year_id = ?)
		  AND (? = '' OR s.class_id = ?)
		  AND (? = '' OR s.section_id = ?)
		  AND (? = '' OR f.student_id = ?)
		ORDER BY f.due_date, f.id`,
		filter.AcademicYearID, filter.AcademicYearID,
		filter.ClassID, filter.ClassID,
		filter.SectionID, filter.SectionID,
		filter.StudentID, filter.StudentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list student fees: %w", err)
	}
	defer rows.Close()

	out := []*models.StudentFee{}
	for rows.Next() {
		fee, err := scanStudentFee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student fee: %w", err)
		}
		out = append(out, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate student fees: %w", err)
	}
	return out, nil
}

// UpdateStudentFeeStatus sets the stored status of an active fee.
func (s *SQLiteStore) UpdateStudentFeeStatus(ctx context.Context, id string, status models.FeeStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE student_fees SET status = ? WHERE id = ? AND is_active = 1", status, id)
	return execOne(res, err, "student fee", id)
}

// DeactivateStudentFee soft-deletes a fee.
func (s *SQLiteStore) DeactivateStudentFee(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE student_fees SET is_active = 0 WHERE id = ? AND is_active = 1", id)
	return execOne(res, err, "student fee", id)
}
