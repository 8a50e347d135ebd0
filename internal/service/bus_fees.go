package service

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/metrics"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

// listBusFees returns the flat bus fee list, or the per-student
// aggregation when useStudentClassAggregation=true.
func (s *FeeService) listBusFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	aggregate, _ := strconv.ParseBool(q.Get("useStudentClassAggregation"))

	fees, err := s.store.ListBusFees(ctx, q.Get("academicYearId"))
	if err != nil {
		writeError(w, "ListBusFees", err)
		return
	}
	flat := values(fees)
	now := s.now()
	for i := range flat {
		rec := ledger.BusRecord(flat[i])
		flat[i].Status = ledger.ServerStatus(flat[i].Status, rec.Remaining(), flat[i].DueDate, now)
	}

	if !aggregate {
		writeJSON(w, http.StatusOK, flat)
		return
	}

	payments, err := s.store.ListPayments(ctx, storage.PaymentFilter{Bus: true})
	if err != nil {
		writeError(w, "ListBusFees", err)
		return
	}
	result := ledger.GroupBusFees(flat, values(payments))
	if result.Dropped > 0 {
		slog.Warn("Bus fees without a student were left out", "dropped", result.Dropped)
	}
	writeJSON(w, http.StatusOK, result.Groups)
}

type createBusFeeRequest struct {
	StudentID        string           `json:"studentId" validate:"required"`
	AcademicYearID   string           `json:"academicYearId" validate:"required"`
	RouteDestination string           `json:"routeDestination" validate:"required"`
	Amount           float64          `json:"amount" validate:"gt=0"`
	DueDate          string           `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Status           models.FeeStatus `json:"status" validate:"omitempty,oneof=not_started pending overdue paid"`
}

func (s *FeeService) createBusFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireManager(); err != nil {
		writeError(w, "CreateBusFee", err)
		return
	}
	var req createBusFeeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateBusFee", err)
		return
	}
	due, err := ledger.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, "CreateBusFee", err)
		return
	}
	status := req.Status
	if status == "" {
		status = models.StatusNotStarted
	}

	fee := &models.StudentBusFee{
		StudentID:        req.StudentID,
		AcademicYearID:   req.AcademicYearID,
		RouteDestination: req.RouteDestination,
		Amount:           ledger.Round2(req.Amount),
		DueDate:          due,
		Status:           status,
		IsActive:         true,
	}
	if err := s.store.CreateBusFee(ctx, fee); err != nil {
		writeError(w, "CreateBusFee", err)
		return
	}
	slog.Info("Bus fee created", "bus_fee_id", fee.ID, "student_id", fee.StudentID, "route", fee.RouteDestination)
	writeJSON(w, http.StatusCreated, fee)
}

type updateBusStatusRequest struct {
	StudentBusFeeID string           `json:"studentBusFeeId" validate:"required"`
	Status          models.FeeStatus `json:"status" validate:"required,oneof=not_started pending overdue paid"`
}

func (s *FeeService) updateBusFeeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := middleware.GetSession(ctx).RequireCollector(); err != nil {
		writeError(w, "UpdateBusFeeStatus", err)
		return
	}
	var req updateBusStatusRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "UpdateBusFeeStatus", err)
		return
	}
	if err := s.store.UpdateBusFeeStatus(ctx, req.StudentBusFeeID, req.Status); err != nil {
		metrics.StatusUpdateFailed(string(ledger.KindBus))
		writeError(w, "UpdateBusFeeStatus", err)
		return
	}
	slog.Info("Bus fee status updated", "bus_fee_id", req.StudentBusFeeID, "status", req.Status)
	writeJSON(w, http.StatusOK, req)
}
