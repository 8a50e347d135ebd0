package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/schoolfees/internal/models"
)

// CreateLateFeeRecord inserts a late fee. A second record for the same
// (fee, rule) pair is ignored and reported as not created.
func (s *SQLiteStore) CreateLateFeeRecord(ctx context.Context, r *models.LateFeeRecord) (bool, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO late_fee_records (id, student_fee_id, late_fee_rule_id, amount, is_waived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentFeeID, nullable(r.LateFeeRuleID), r.LateFeeAmount, r.IsWaived, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert late fee record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert late fee record: %w", err)
	}
	return n > 0, nil
}

// ListLateFeeRecords returns the late fees of one fee, or of every active
// fee when studentFeeID is empty. Waived records are included.
func (s *SQLiteStore) ListLateFeeRecords(ctx context.Context, studentFeeID string) ([]*models.LateFeeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.student_fee_id, COALESCE(r.late_fee_rule_id, ''), r.amount, r.is_waived
		 FROM late_fee_records r
		 JOIN student_fees f ON f.id = r.student_fee_id AND f.is_active = 1
		 WHERE (? = '' OR r.student_fee_id = ?)
		 ORDER BY r.created_at, r.id`,
		studentFeeID, studentFeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list late fee records: %w", err)
	}
	defer rows.Close()

	out := []*models.LateFeeRecord{}
	for rows.Next() {
		r := &models.LateFeeRecord{}
		if err := rows.Scan(&r.ID, &r.StudentFeeID, &r.LateFeeRuleID, &r.LateFeeAmount, &r.IsWaived); err != nil {
			return nil, fmt.Errorf("failed to scan late fee record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate late fee records: %w", err)
	}
	return out, nil
}

// WaiveLateFee marks a late fee as waived.
func (s *SQLiteStore) WaiveLateFee(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE late_fee_records SET is_waived = 1 WHERE id = ?", id)
	return execOne(res, err, "late fee record", id)
}
