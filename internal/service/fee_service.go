package service

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/metrics"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

// FeeService serves the fee ledger REST API.
type FeeService struct {
	store    storage.Store
	validate *validator.Validate
	now      func() time.Time

	schoolName string
	currency   string
}

// Option configures a FeeService.
type Option func(*FeeService)

// WithClock overrides the clock used to derive overdue statuses.
func WithClock(now func() time.Time) Option {
	return func(s *FeeService) { s.now = now }
}

// WithSchool sets the name and currency printed on receipts.
func WithSchool(name, currency string) Option {
	return func(s *FeeService) {
		s.schoolName = name
		s.currency = currency
	}
}

// NewFeeService creates a new FeeService with the given storage backend.
func NewFeeService(store storage.Store, opts ...Option) *FeeService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &FeeService{
		store:      store,
		validate:   v,
		now:        time.Now,
		schoolName: "School",
		currency:   "INR",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts every route on mux. authn wraps each handler and must
// put the caller's session in the request context.
func (s *FeeService) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /fee-types":           s.listFeeTypes,
		"POST /fee-types":          s.createFeeType,
		"GET /discount-types":      s.listDiscountTypes,
		"POST /discount-types":     s.createDiscountType,
		"GET /fees-structure":      s.listFeeStructures,
		"POST /fees-structure":     s.createFeeStructure,
		"GET /late-fee-rules":      s.listLateFeeRules,
		"POST /late-fee-rules":     s.createLateFeeRule,
		"GET /students":            s.listStudents,
		"POST /students":           s.createStudent,

		"POST /late-fee-rules/apply": s.applyLateFeeRule,

		"GET /student-fees":    s.listStudentFees,
		"POST /student-fees":   s.assignFee,
		"PUT /student-fees":    s.updateStudentFeeStatus,
		"DELETE /student-fees": s.deleteStudentFee,

		"GET /student-fee-payments":         s.listTuitionPayments,
		"POST /student-fee-payments":        s.createTuitionPayment,
		"PUT /student-fee-payments":         s.updateTuitionPayment,
		"DELETE /student-fee-payments":      s.deletePayment,
		"POST /student-fee-payments/settle": s.settlePayment,

		"GET /student-late-fees":       s.listLateFees,
		"POST /student-late-fees":      s.createLateFee,
		"PUT /student-late-fees/waive": s.waiveLateFee,

		"GET /student-bus-fees":  s.listBusFees,
		"POST /student-bus-fees": s.createBusFee,
		"PUT /student-bus-fees":  s.updateBusFeeStatus,

		"GET /student-bus-fee-payments":  s.listBusPayments,
		"POST /student-bus-fee-payments": s.createBusPayment,
		"PUT /student-bus-fee-payments":  s.updateBusPayment,

		"GET /receipts/{paymentId}": s.receipt,
	}
	for pattern, h := range routes {
		mux.Handle(pattern, authn(h))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())
}

type createFeeTypeRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *FeeService) listFeeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListFeeTypes(r.Context())
	if err != nil {
		writeError(w, "ListFeeTypes", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *FeeService) createFeeType(w http.ResponseWriter, r *http.Request) {
	if err := middleware.GetSession(r.Context()).RequireManager(); err != nil {
		writeError(w, "CreateFeeType", err)
		return
	}
	var req createFeeTypeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateFeeType", err)
		return
	}

	ft := &models.FeeType{Name: req.Name, IsActive: true}
	if err := s.store.CreateFeeType(r.Context(), ft); err != nil {
		writeError(w, "CreateFeeType", err)
		return
	}
	slog.Info("Fee type created", "fee_type_id", ft.ID, "name", ft.Name)
	writeJSON(w, http.StatusCreated, ft)
}

type createDiscountTypeRequest struct {
	Kind  models.DiscountKind `json:"kind" validate:"required,oneof=PERCENTAGE FLAT"`
	Value float64             `json:"value" validate:"gt=0"`
}

func (s *FeeService) listDiscountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListDiscountTypes(r.Context())
	if err != nil {
		writeError(w, "ListDiscountTypes", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *FeeService) createDiscountType(w http.ResponseWriter, r *http.Request) {
	if err := middleware.GetSession(r.Context()).RequireManager(); err != nil {
		writeError(w, "CreateDiscountType", err)
		return
	}
	var req createDiscountTypeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateDiscountType", err)
		return
	}
	if req.Kind == models.DiscountPercentage && req.Value > 100 {
		writeError(w, "CreateDiscountType", badRequest("percentage discount cannot exceed 100"))
		return
	}

	d := &models.DiscountType{Kind: req.Kind, Value: ledger.Round2(req.Value)}
	if err := s.store.CreateDiscountType(r.Context(), d); err != nil {
		writeError(w, "CreateDiscountType", err)
		return
	}
	slog.Info("Discount type created", "discount_type_id", d.ID, "kind", d.Kind, "value", d.Value)
	writeJSON(w, http.StatusCreated, d)
}

type feeTypeAmountRequest struct {
	FeeTypeID string  `json:"feeTypeId" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

type createFeeStructureRequest struct {
	ClassID          string                 `json:"classId" validate:"required"`
	SectionIDs       []string               `json:"sectionIds" validate:"dive,required"`
	AcademicYearID   string                 `json:"academicYearId" validate:"required"`
	InstallmentLabel string                 `json:"installmentLabel" validate:"required"`
	FeeTypeAmounts   []feeTypeAmountRequest `json:"feeTypeAmounts" validate:"required,min=1,dive"`
	TotalAmount      float64                `json:"totalAmount" validate:"gte=0"`
	DueDates         []string               `json:"dueDates" validate:"required,min=1,dive,datetime=2006-01-02"`
}

func (s *FeeService) listFeeStructures(w http.ResponseWriter, r *http.Request) {
	structures, err := s.store.ListFeeStructures(r.Context(), r.URL.Query().Get("academicYearId"))
	if err != nil {
		writeError(w, "ListFeeStructures", err)
		return
	}
	writeJSON(w, http.StatusOK, structures)
}

func (s *FeeService) createFeeStructure(w http.ResponseWriter, r *http.Request) {
	if err := middleware.GetSession(r.Context()).RequireManager(); err != nil {
		writeError(w, "CreateFeeStructure", err)
		return
	}
	var req createFeeStructureRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateFeeStructure", err)
		return
	}

	fs := &models.FeeStructure{
		ClassID:          req.ClassID,
		SectionIDs:       req.SectionIDs,
		AcademicYearID:   req.AcademicYearID,
		InstallmentLabel: req.InstallmentLabel,
		TotalAmount:      ledger.Round2(req.TotalAmount),
		DueDates:         req.DueDates,
	}
	var sum float64
	for _, line := range req.FeeTypeAmounts {
		fs.FeeTypeAmounts = append(fs.FeeTypeAmounts, models.FeeTypeAmount{
			FeeTypeID: line.FeeTypeID,
			Amount:    ledger.Round2(line.Amount),
		})
		sum = ledger.Required(sum, line.Amount)
	}
	if fs.TotalAmount == 0 {
		fs.TotalAmount = sum
	}

	if err := s.store.CreateFeeStructure(r.Context(), fs); err != nil {
		writeError(w, "CreateFeeStructure", err)
		return
	}
	slog.Info("Fee structure created",
		"fee_structure_id", fs.ID,
		"class_id", fs.ClassID,
		"total", fs.TotalAmount,
		"installments", len(fs.DueDates),
	)
	writeJSON(w, http.StatusCreated, fs)
}

type createStudentRequest struct {
	Name        string `json:"name" validate:"required"`
	AdmissionNo string `json:"admissionNo"`
	ClassID     string `json:"classId" validate:"required"`
	SectionID   string `json:"sectionId"`
}

func (s *FeeService) listStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		writeError(w, "ListStudents", err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *FeeService) createStudent(w http.ResponseWriter, r *http.Request) {
	if err := middleware.GetSession(r.Context()).RequireManager(); err != nil {
		writeError(w, "CreateStudent", err)
		return
	}
	var req createStudentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, "CreateStudent", err)
		return
	}

	student := &models.StudentRef{
		Name:        req.Name,
		AdmissionNo: req.AdmissionNo,
		ClassID:     req.ClassID,
		SectionID:   req.SectionID,
	}
	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		writeError(w, "CreateStudent", err)
		return
	}
	slog.Info("Student created", "student_id", student.ID, "class_id", student.ClassID)
	writeJSON(w, http.StatusCreated, student)
}
