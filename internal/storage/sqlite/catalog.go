package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/schoolfees/internal/models"
)

// CreateFeeType persists a new fee type.
func (s *SQLiteStore) CreateFeeType(ctx context.Context, ft *models.FeeType) error {
	if ft.ID == "" {
		ft.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fee_types (id, name, is_active) VALUES (?, ?, ?)",
		ft.ID, ft.Name, ft.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee type: %w", err)
	}
	return nil
}

// ListFeeTypes returns the active fee types ordered by name.
func (s *SQLiteStore) ListFeeTypes(ctx context.Context) ([]*models.FeeType, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, is_active FROM fee_types WHERE is_active = 1 ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee types: %w", err)
	}
	defer rows.Close()

	out := []*models.FeeType{}
	for rows.Next() {
		ft := &models.FeeType{}
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan fee type: %w", err)
		}
		out = append(out, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee types: %w", err)
	}
	return out, nil
}

// CreateDiscountType persists a new discount type.
func (s *SQLiteStore) CreateDiscountType(ctx context.Context, d *models.DiscountType) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO discount_types (id, kind, value) VALUES (?, ?, ?)",
		d.ID, d.Kind, d.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert discount type: %w", err)
	}
	return nil
}

// GetDiscountType retrieves a discount type by ID.
func (s *SQLiteStore) GetDiscountType(ctx context.Context, id string) (*models.DiscountType, error) {
	d := &models.DiscountType{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, kind, value FROM discount_types WHERE id = ?", id,
	).Scan(&d.ID, &d.Kind, &d.Value)
	if err == sql.ErrNoRows {
		return nil, notFound("discount type", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount type: %w", err)
	}
	return d, nil
}

// ListDiscountTypes returns every discount type.
func (s *SQLiteStore) ListDiscountTypes(ctx context.Context) ([]*models.DiscountType, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, kind, value FROM discount_types ORDER BY kind, value")
	if err != nil {
		return nil, fmt.Errorf("failed to list discount types: %w", err)
	}
	defer rows.Close()

	out := []*models.DiscountType{}
	for rows.Next() {
		d := &models.DiscountType{}
		if err := rows.Scan(&d.ID, &d.Kind, &d.Value); err != nil {
			return nil, fmt.Errorf("failed to scan discount type: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate discount types: %w", err)
	}
	return out, nil
}

// CreateFeeStructure persists a structure and its child rows in one transaction.
func (s *SQLiteStore) CreateFeeStructure(ctx context.Context, fs *models.FeeStructure) error {
	if fs.ID == "" {
		fs.ID = uuid.New().String()
	}
	if fs.CreatedAt == 0 {
		fs.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fee_structures (id, class_id, academic_year_id, installment_label, total_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fs.ID, fs.ClassID, fs.AcademicYearID, fs.InstallmentLabel, fs.TotalAmount, fs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee structure: %w", err)
	}

	for _, section := range fs.SectionIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fee_structure_sections (structure_id, section_id) VALUES (?, ?)",
			fs.ID, section,
		); err != nil {
			return fmt.Errorf("failed to insert fee structure section: %w", err)
		}
	}

	for _, line := range fs.FeeTypeAmounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fee_structure_amounts (structure_id, fee_type_id, amount) VALUES (?, ?, ?)",
			fs.ID, line.FeeTypeID, line.Amount,
		); err != nil {
			return fmt.Errorf("failed to insert fee structure amount: %w", err)
		}
	}

	for i, due := range fs.DueDates {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fee_structure_due_dates (structure_id, position, due_date) VALUES (?, ?, ?)",
			fs.ID, i, due,
		); err != nil {
			return fmt.Errorf("failed to insert fee structure due date: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetFeeStructure retrieves a structure by ID, including its child rows.
func (s *SQLiteStore) GetFeeStructure(ctx context.Context, id string) (*models.FeeStructure, error) {
	fs := &models.FeeStructure{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, class_id, academic_year_id, installment_label, total_amount, created_at
		 FROM fee_structures WHERE id = ?`, id,
	).Scan(&fs.ID, &fs.ClassID, &fs.AcademicYearID, &fs.InstallmentLabel, &fs.TotalAmount, &fs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("fee structure", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}
	if err := s.loadStructureChildren(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// ListFeeStructures returns the structures of an academic year, or all
// structures when academicYearID is empty.
func (s *SQLiteStore) ListFeeStructures(ctx context.Context, academicYearID string) ([]*models.FeeStructure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, class_id, academic_year_id, installment_label, total_amount, created_at
		 FROM fee_structures
		 WHERE (? = '' OR academic_year_id = ?)
		 ORDER BY class_id, installment_label`,
		academicYearID, academicYearID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee structures: %w", err)
	}

	out := []*models.FeeStructure{}
	for rows.Next() {
		fs := &models.FeeStructure{}
		if err := rows.Scan(&fs.ID, &fs.ClassID, &fs.AcademicYearID, &fs.InstallmentLabel, &fs.TotalAmount, &fs.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan fee structure: %w", err)
		}
		out = append(out, fs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee structures: %w", err)
	}

	for _, fs := range out {
		if err := s.loadStructureChildren(ctx, fs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) loadStructureChildren(ctx context.Context, fs *models.FeeStructure) error {
	sections, err := s.queryStrings(ctx,
		"SELECT section_id FROM fee_structure_sections WHERE structure_id = ? ORDER BY section_id", fs.ID)
	if err != nil {
		return fmt.Errorf("failed to get fee structure sections: %w", err)
	}
	fs.SectionIDs = sections

	dues, err := s.queryStrings(ctx,
		"SELECT due_date FROM fee_structure_due_dates WHERE structure_id = ? ORDER BY position", fs.ID)
	if err != nil {
		return fmt.Errorf("failed to get fee structure due dates: %w", err)
	}
	fs.DueDates = dues

	rows, err := s.db.QueryContext(ctx,
		"SELECT fee_type_id, amount FROM fee_structure_amounts WHERE structure_id = ? ORDER BY fee_type_id", fs.ID)
	if err != nil {
		return fmt.Errorf("failed to get fee structure amounts: %w", err)
	}
	defer rows.Close()

	fs.FeeTypeAmounts = nil
	for rows.Next() {
		var line models.FeeTypeAmount
		if err := rows.Scan(&line.FeeTypeID, &line.Amount); err != nil {
			return fmt.Errorf("failed to scan fee structure amount: %w", err)
		}
		fs.FeeTypeAmounts = append(fs.FeeTypeAmounts, line)
	}
	return rows.Err()
}

// CreateLateFeeRule persists a rule and the classes it applies to.
func (s *SQLiteStore) CreateLateFeeRule(ctx context.Context, rule *models.LateFeeRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO late_fee_rules (id, academic_year_id, amount) VALUES (?, ?, ?)",
		rule.ID, rule.AcademicYearID, rule.Amount,
	); err != nil {
		return fmt.Errorf("failed to insert late fee rule: %w", err)
	}
	for _, classID := range rule.ClassIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO late_fee_rule_classes (rule_id, class_id) VALUES (?, ?)",
			rule.ID, classID,
		); err != nil {
			return fmt.Errorf("failed to insert late fee rule class: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLateFeeRule retrieves a rule by ID.
func (s *SQLiteStore) GetLateFeeRule(ctx context.Context, id string) (*models.LateFeeRule, error) {
	rule := &models.LateFeeRule{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, academic_year_id, amount FROM late_fee_rules WHERE id = ?", id,
	).Scan(&rule.ID, &rule.AcademicYearID, &rule.Amount)
	if err == sql.ErrNoRows {
		return nil, notFound("late fee rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get late fee rule: %w", err)
	}
	classes, err := s.queryStrings(ctx,
		"SELECT class_id FROM late_fee_rule_classes WHERE rule_id = ? ORDER BY class_id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get late fee rule classes: %w", err)
	}
	rule.ClassIDs = classes
	return rule, nil
}

// ListLateFeeRules returns the rules of an academic year, or all rules.
func (s *SQLiteStore) ListLateFeeRules(ctx context.Context, academicYearID string) ([]*models.LateFeeRule, error) {
	ids, err := s.queryStrings(ctx,
		"SELECT id FROM late_fee_rules WHERE (? = '' OR academic_year_id = ?) ORDER BY id",
		academicYearID, academicYearID)
	if err != nil {
		return nil, fmt.Errorf("failed to list late fee rules: %w", err)
	}
	out := make([]*models.LateFeeRule, 0, len(ids))
	for _, id := range ids {
		rule, err := s.GetLateFeeRule(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// queryStrings runs a query returning a single text column.
func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
