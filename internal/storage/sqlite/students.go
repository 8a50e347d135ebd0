package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/schoolfees/internal/models"
)

// CreateStudent persists a new student.
func (s *SQLiteStore) CreateStudent(ctx context.Context, st *models.StudentRef) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id, name, admission_no, class_id, section_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.AdmissionNo, st.ClassID, st.SectionID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// ListStudents returns the active students ordered by class, section and name.
func (s *SQLiteStore) ListStudents(ctx context.Context) ([]*models.StudentRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, admission_no, class_id, section_id FROM students
		 WHERE is_active = 1 ORDER BY class_id, section_id, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	out := []*models.StudentRef{}
	for rows.Next() {
		st := &models.StudentRef{}
		if err := rows.Scan(&st.ID, &st.Name, &st.AdmissionNo, &st.ClassID, &st.SectionID); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}
	return out, nil
}
