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

const paymentSelect = `
SELECT id, COALESCE(student_fee_id, ''), COALESCE(student_bus_fee_id, ''), fees_structure_id,
       amount, mode, paid_on, is_active, created_at
FROM payments
`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var paidOn string
	if err := row.Scan(&p.ID, &p.StudentFeeID, &p.StudentBusFeeID, &p.FeesStructureID,
		&p.Amount, &p.Mode, &paidOn, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.PaidOn, err = parseDate(paidOn); err != nil {
		return nil, err
	}
	return p, nil
}

func insertPayment(ctx context.Context, db execer, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if p.PaidOn.IsZero() {
		p.PaidOn = time.Now().UTC().Truncate(24 * time.Hour)
	}
	p.IsActive = true

	_, err := db.ExecContext(ctx,
		`INSERT INTO payments (id, student_fee_id, student_bus_fee_id, fees_structure_id, amount, mode, paid_on, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		p.ID, nullable(p.StudentFeeID), nullable(p.StudentBusFeeID), p.FeesStructureID,
		p.Amount, p.Mode, formatDate(p.PaidOn), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func updatePayment(ctx context.Context, db execer, p *models.Payment) error {
	res, err := db.ExecContext(ctx,
		"UPDATE payments SET amount = ?, mode = ?, paid_on = ? WHERE id = ? AND is_active = 1",
		p.Amount, p.Mode, formatDate(p.PaidOn), p.ID,
	)
	return execOne(res, err, "payment", p.ID)
}

// CreatePayment persists a new payment.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return insertPayment(ctx, s.db, p)
}

// UpdatePayment rewrites the amount, mode and date of an active payment.
func (s *SQLiteStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return updatePayment(ctx, s.db, p)
}

// GetPayment retrieves an active payment by ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, paymentSelect+" WHERE id = ? AND is_active = 1", id))
	if err == sql.ErrNoRows {
		return nil, notFound("payment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPayments returns active tuition or transport payments, oldest first.
func (s *SQLiteStore) ListPayments(ctx context.Context, filter storage.PaymentFilter) ([]*models.Payment, error) {
	query := paymentSelect + " WHERE is_active = 1 AND student_fee_id IS NOT NULL AND (? = '' OR student_fee_id = ?)"
	feeID := filter.StudentFeeID
	if filter.Bus {
		query = paymentSelect + " WHERE is_active = 1 AND student_bus_fee_id IS NOT NULL AND (? = '' OR student_bus_fee_id = ?)"
		feeID = filter.StudentBusFeeID
	}

	rows, err := s.db.QueryContext(ctx, query+" ORDER BY paid_on, created_at", feeID, feeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	out := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return out, nil
}

// DeactivatePayment soft-deletes a payment.
func (s *SQLiteStore) DeactivatePayment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET is_active = 0 WHERE id = ? AND is_active = 1", id)
	return execOne(res, err, "payment", id)
}

// SettlePayment writes the payment and the fee status together.
func (s *SQLiteStore) SettlePayment(ctx context.Context, p *models.Payment, status models.FeeStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if p.ID == "" {
		err = insertPayment(ctx, tx, p)
	} else {
		err = updatePayment(ctx, tx, p)
	}
	if err != nil {
		return err
	}

	if p.StudentBusFeeID != "" {
		res, err := tx.ExecContext(ctx,
			"UPDATE student_bus_fees SET status = ? WHERE id = ? AND is_active = 1", status, p.StudentBusFeeID)
		if err := execOne(res, err, "bus fee", p.StudentBusFeeID); err != nil {
			return err
		}
	} else {
		res, err := tx.ExecContext(ctx,
			"UPDATE student_fees SET status = ? WHERE id = ? AND is_active = 1", status, p.StudentFeeID)
		if err := execOne(res, err, "student fee", p.StudentFeeID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
