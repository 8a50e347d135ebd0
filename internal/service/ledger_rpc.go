package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/storage"
)

const (
	// LedgerServiceName is the fully-qualified name of the LedgerService.
	LedgerServiceName = "fees.v1.LedgerService"

	// LedgerServiceGroupStudentFeesProcedure is the path of the
	// GroupStudentFees RPC.
	LedgerServiceGroupStudentFeesProcedure = "/fees.v1.LedgerService/GroupStudentFees"
	// LedgerServiceValidatePaymentProcedure is the path of the
	// ValidatePayment RPC.
	LedgerServiceValidatePaymentProcedure = "/fees.v1.LedgerService/ValidatePayment"
)

// jsonCodec carries plain Go structs over Connect. It replaces the default
// protojson codec registered under the same name.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GroupStudentFeesRequest selects the fees to group.
type GroupStudentFeesRequest struct {
	AcademicYearID string `json:"academicYearId"`
	ClassID        string `json:"classId"`
	SectionID      string `json:"sectionId"`
}

// ValidatePaymentRequest is a proposed payment. Exactly one of the fee IDs
// is set; EditingPaymentID names the payment being changed.
type ValidatePaymentRequest struct {
	StudentFeeID     string `json:"studentFeeId"`
	StudentBusFeeID  string `json:"studentBusFeeId"`
	Amount           string `json:"amount"`
	Full             bool   `json:"full"`
	EditingPaymentID string `json:"editingPaymentId"`
}

// ValidatePaymentResponse is the accepted payment and the fee it was
// checked against.
type ValidatePaymentResponse struct {
	Record   ledger.FeeRecord       `json:"record"`
	Decision ledger.PaymentDecision `json:"decision"`
}

// LedgerService exposes the ledger computations over Connect.
type LedgerService struct {
	fees *FeeService
}

// NewLedgerService creates a LedgerService reading through fees.
func NewLedgerService(fees *FeeService) *LedgerService {
	return &LedgerService{fees: fees}
}

// GroupStudentFees returns the grouped tuition ledger with server-derived
// statuses.
func (s *LedgerService) GroupStudentFees(ctx context.Context, req *connect.Request[GroupStudentFeesRequest]) (*connect.Response[ledger.GroupResult], error) {
	slog.Info("GroupStudentFees request received",
		"academic_year_id", req.Msg.AcademicYearID,
		"class_id", req.Msg.ClassID,
	)

	fees, lateFees, err := s.fees.studentFeesWithStatus(ctx, storage.StudentFeeFilter{
		AcademicYearID: req.Msg.AcademicYearID,
		ClassID:        req.Msg.ClassID,
		SectionID:      req.Msg.SectionID,
	})
	if err != nil {
		slog.Error("GroupStudentFees failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	payments, err := s.fees.store.ListPayments(ctx, storage.PaymentFilter{})
	if err != nil {
		slog.Error("GroupStudentFees failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	result := ledger.GroupStudentFees(fees, values(payments), lateFees)
	slog.Info("GroupStudentFees successful", "students", len(result.Groups), "dropped", result.Dropped)
	return connect.NewResponse(&result), nil
}

// ValidatePayment checks a payment without recording it.
func (s *LedgerService) ValidatePayment(ctx context.Context, req *connect.Request[ValidatePaymentRequest]) (*connect.Response[ValidatePaymentResponse], error) {
	msg := req.Msg
	slog.Info("ValidatePayment request received",
		"student_fee_id", msg.StudentFeeID,
		"student_bus_fee_id", msg.StudentBusFeeID,
		"full", msg.Full,
	)

	kind, id, err := paymentRequest{StudentFeeID: msg.StudentFeeID, StudentBusFeeID: msg.StudentBusFeeID}.feeID()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	rec, err := s.fees.loadRecord(ctx, kind, id)
	if err != nil {
		return nil, connectError(err)
	}

	check := ledger.PaymentCheck{Record: rec, Amount: strings.TrimSpace(msg.Amount), Full: msg.Full}
	if msg.EditingPaymentID != "" {
		if check.Editing, err = s.fees.store.GetPayment(ctx, msg.EditingPaymentID); err != nil {
			return nil, connectError(err)
		}
	}

	decision, err := ledger.ValidatePayment(check)
	if err != nil {
		slog.Info("ValidatePayment rejected", "fee_id", id, "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&ValidatePaymentResponse{Record: rec, Decision: decision}), nil
}

func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case statusFor(err) == http.StatusBadRequest:
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	slog.Error("LedgerService failed", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}

// NewLedgerServiceHandler builds an HTTP handler for the service and
// returns the path to mount it on.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connect.WithCodec(jsonCodec{}))
	mux := http.NewServeMux()
	mux.Handle(LedgerServiceGroupStudentFeesProcedure, connect.NewUnaryHandler(
		LedgerServiceGroupStudentFeesProcedure,
		svc.GroupStudentFees,
		opts...,
	))
	mux.Handle(LedgerServiceValidatePaymentProcedure, connect.NewUnaryHandler(
		LedgerServiceValidatePaymentProcedure,
		svc.ValidatePayment,
		opts...,
	))
	return "/" + LedgerServiceName + "/", mux
}

// LedgerServiceClient calls a LedgerService.
type LedgerServiceClient struct {
	groupStudentFees *connect.Client[GroupStudentFeesRequest, ledger.GroupResult]
	validatePayment  *connect.Client[ValidatePaymentRequest, ValidatePaymentResponse]
}

// NewLedgerServiceClient constructs a client for the service at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(opts, connect.WithCodec(jsonCodec{}))
	return &LedgerServiceClient{
		groupStudentFees: connect.NewClient[GroupStudentFeesRequest, ledger.GroupResult](
			httpClient,
			baseURL+LedgerServiceGroupStudentFeesProcedure,
			opts...,
		),
		validatePayment: connect.NewClient[ValidatePaymentRequest, ValidatePaymentResponse](
			httpClient,
			baseURL+LedgerServiceValidatePaymentProcedure,
			opts...,
		),
	}
}

// GroupStudentFees calls fees.v1.LedgerService.GroupStudentFees.
func (c *LedgerServiceClient) GroupStudentFees(ctx context.Context, req *connect.Request[GroupStudentFeesRequest]) (*connect.Response[ledger.GroupResult], error) {
	return c.groupStudentFees.CallUnary(ctx, req)
}

// ValidatePayment calls fees.v1.LedgerService.ValidatePayment.
func (c *LedgerServiceClient) ValidatePayment(ctx context.Context, req *connect.Request[ValidatePaymentRequest]) (*connect.Response[ValidatePaymentResponse], error) {
	return c.validatePayment.CallUnary(ctx, req)
}

// Interceptors returns the handler options every Connect service is
// mounted with.
func Interceptors(authn connect.Interceptor) connect.HandlerOption {
	return connect.WithInterceptors(middleware.LoggingInterceptor(), authn)
}
