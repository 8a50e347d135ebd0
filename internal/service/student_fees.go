package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/metrics"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

// values dereferences a store result for the ledger functions.
func values[T any](ps []*T) []T {
	out := make([]T, 0, len(ps))
	for _, p := range ps {
		out = append(out, *p)
	}
	return out
}

// studentFeesWithStatus lists fees and replaces each stored status with
// the one derived from the balance and the server clock.
func (s *FeeService) studentFeesWithStatus(ctx context.Context, filter storage.StudentFeeFilter) ([]models.StudentFee, []models.LateFeeRecord, error) {
	fees, err := s.store.ListStudentFees(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	lateFees, err := s.store.ListLateFeeRecords(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	late := values(lateFees)
	out := values(fees)
	for i := range out {
		rec := ledger.TuitionRecord(out[i], late)
		out[i].Status = ledger.ServerStatus(out[i].Status, rec.Remaining(), out[i].DueDate, now)
	}
	return out, late, nil
}

func (s *FeeService) listStudentFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.StudentFeeFilter{
		AcademicYearID: q.Get("academicYearId"),
		ClassID:        q.Get("classId"),
		SectionID:      q.Get("sectionId"),
		StudentID:      q.Get("studentId"),
	}
	fees, _, err := s.studentFeesWithStatus(r.Context(), filter)
	if err != nil {
		writeError(w, "ListStudentFees", err)
		return
	}
	slog.Debug("ListStudentFees successful", "count", len(fees), "class_id", filter.ClassID)
	writeJSON(w, http.StatusOK, fees)
}

type assignFeeRequest struct {
	StudentID      string           `json:"studentId" validate:"required"`
	FeeStructureID string           `json:"feeStructureId" validate:"required"`
	DueDate        string           `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	DiscountTypeID string           `json:"discountTypeId"`
	IsBusTaken     bool             `json:"isBusTaken"`
	Status         models.FeeStatus `json:"status" validate:"omitempty,oneof=not_started pending overdue paid"`
}

// assignFee assigns a fee structure to a student. With an explicit due
// date one fee is created for the whole total; otherwise the total is
// split across the structure's due dates, one fee per installment.
func (s *FeeService) assignFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireManager(); err != nil {
		writeError(w, "AssignFee", err)
		return
	}
	var req assignFeeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "AssignFee", err)
		return
	}

	fs, err := s.store.GetFeeStructure(ctx, req.FeeStructureID)
	if err != nil {
		writeError(w, "AssignFee", err)
		return
	}
	total := fs.TotalAmount
	if req.DiscountTypeID != "" {
		d, err := s.store.GetDiscountType(ctx, req.DiscountTypeID)
		if err != nil {
			writeError(w, "AssignFee", err)
			return
		}
		total = ledger.ApplyDiscount(*d, total)
	}

	dueDates := fs.DueDates
	if req.DueDate != "" {
		dueDates = []string{req.DueDate}
	}
	status := req.Status
	if status == "" {
		status = models.StatusNotStarted
	}

	parts := ledger.SplitInstallments(total, len(dueDates))
	created := make([]*models.StudentFee, 0, len(dueDates))
	for i, raw := range dueDates {
		due, err := ledger.ParseDate(raw)
		if err != nil {
			writeError(w, "AssignFee", err)
			return
		}
		fee := &models.StudentFee{
			StudentID:      req.StudentID,
			FeeStructureID: fs.ID,
			AcademicYearID: fs.AcademicYearID,
			DueDate:        due,
			Status:         status,
			FeeTotalAmount: parts[i],
			IsBusTaken:     req.IsBusTaken,
			IsActive:       true,
		}
		if err := s.store.CreateStudentFee(ctx, fee); err != nil {
			writeError(w, "AssignFee", err)
			return
		}
		created = append(created, fee)
	}

	slog.Info("Fee structure assigned",
		"student_id", req.StudentID,
		"fee_structure_id", fs.ID,
		"installments", len(created),
		"total", total,
	)
	writeJSON(w, http.StatusCreated, created)
}

type updateStatusRequest struct {
	StudentFeeID string           `json:"studentFeeId" validate:"required"`
	Status       models.FeeStatus `json:"status" validate:"required,oneof=not_started pending overdue paid"`
}

func (s *FeeService) updateStudentFeeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "UpdateStudentFeeStatus", err)
		return
	}
	var req updateStatusRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "UpdateStudentFeeStatus", err)
		return
	}
	if err := s.store.UpdateStudentFeeStatus(ctx, req.StudentFeeID, req.Status); err != nil {
		metrics.StatusUpdateFailed(string(ledger.KindTuition))
		writeError(w, "UpdateStudentFeeStatus", err)
		return
	}
	slog.Info("Student fee status updated", "student_fee_id", req.StudentFeeID, "status", req.Status)
	writeJSON(w, http.StatusOK, req)
}

func (s *FeeService) deleteStudentFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireManager(); err != nil {
		writeError(w, "DeleteStudentFee", err)
		return
	}
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, "DeleteStudentFee", err)
		return
	}
	if err := s.store.DeactivateStudentFee(ctx, id); err != nil {
		writeError(w, "DeleteStudentFee", err)
		return
	}
	slog.Info("Student fee deactivated", "student_fee_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type createLateFeeRuleRequest struct {
	ClassIDs       []string `json:"classIds" validate:"required,min=1,dive,required"`
	AcademicYearID string   `json:"academicYearId" validate:"required"`
	Amount         float64  `json:"amount" validate:"gt=0"`
}

func (s *FeeService) listLateFeeRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListLateFeeRules(r.Context(), r.URL.Query().Get("academicYearId"))
	if err != nil {
		writeError(w, "ListLateFeeRules", err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *FeeService) createLateFeeRule(w http.ResponseWriter, r *http.Request) {
	if err := middleware.GetSession(r.Context()).RequireManager(); err != nil {
		writeError(w, "CreateLateFeeRule", err)
		return
	}
	var req createLateFeeRuleRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateLateFeeRule", err)
		return
	}
	rule := &models.LateFeeRule{
		ClassIDs:       req.ClassIDs,
		AcademicYearID: req.AcademicYearID,
		Amount:         ledger.Round2(req.Amount),
	}
	if err := s.store.CreateLateFeeRule(r.Context(), rule); err != nil {
		writeError(w, "CreateLateFeeRule", err)
		return
	}
	slog.Info("Late fee rule created", "rule_id", rule.ID, "classes", len(rule.ClassIDs), "amount", rule.Amount)
	writeJSON(w, http.StatusCreated, rule)
}

// applyLateFeeRule attaches the rule's amount to every overdue fee of its
// classes. Fees that already carry the rule are skipped.
func (s *FeeService) applyLateFeeRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireManager(); err != nil {
		writeError(w, "ApplyLateFeeRule", err)
		return
	}
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, "ApplyLateFeeRule", err)
		return
	}
	rule, err := s.store.GetLateFeeRule(ctx, id)
	if err != nil {
		writeError(w, "ApplyLateFeeRule", err)
		return
	}

	fees, _, err := s.studentFeesWithStatus(ctx, storage.StudentFeeFilter{AcademicYearID: rule.AcademicYearID})
	if err != nil {
		writeError(w, "ApplyLateFeeRule", err)
		return
	}

	applied := 0
	for _, fee := range fees {
		if fee.Status != models.StatusOverdue || fee.Student == nil {
			continue
		}
		if !slices.Contains(rule.ClassIDs, fee.Student.ClassID) {
			continue
		}
		ok, err := s.store.CreateLateFeeRecord(ctx, &models.LateFeeRecord{
			StudentFeeID:  fee.ID,
			LateFeeRuleID: rule.ID,
			LateFeeAmount: rule.Amount,
		})
		if err != nil {
			writeError(w, "ApplyLateFeeRule", fmt.Errorf("fee %s: %w", fee.ID, err))
			return
		}
		if ok {
			applied++
		}
	}
	metrics.LateFeesApplied(applied)

	slog.Info("Late fee rule applied", "rule_id", rule.ID, "applied", applied)
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

type createLateFeeRequest struct {
	StudentFeeID  string  `json:"studentFeeId" validate:"required"`
	LateFeeAmount float64 `json:"lateFeeAmount" validate:"gt=0"`
}

func (s *FeeService) listLateFees(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListLateFeeRecords(r.Context(), r.URL.Query().Get("studentFeeId"))
	if err != nil {
		writeError(w, "ListLateFees", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *FeeService) createLateFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "CreateLateFee", err)
		return
	}
	var req createLateFeeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateLateFee", err)
		return
	}
	if _, err := s.store.GetStudentFee(ctx, req.StudentFeeID); err != nil {
		writeError(w, "CreateLateFee", err)
		return
	}

	rec := &models.LateFeeRecord{
		StudentFeeID:  req.StudentFeeID,
		LateFeeAmount: ledger.Round2(req.LateFeeAmount),
	}
	if _, err := s.store.CreateLateFeeRecord(ctx, rec); err != nil {
		writeError(w, "CreateLateFee", err)
		return
	}
	metrics.LateFeesApplied(1)
	slog.Info("Late fee recorded", "late_fee_id", rec.ID, "student_fee_id", rec.StudentFeeID, "amount", rec.LateFeeAmount)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *FeeService) waiveLateFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireManager(); err != nil {
		writeError(w, "WaiveLateFee", err)
		return
	}
	id, err := requireQuery(r, "id")
	if err != nil {
		writeError(w, "WaiveLateFee", err)
		return
	}
	if err := s.store.WaiveLateFee(ctx, id); err != nil {
		writeError(w, "WaiveLateFee", err)
		return
	}
	slog.Info("Late fee waived", "late_fee_id", id)
	w.WriteHeader(http.StatusNoContent)
}
