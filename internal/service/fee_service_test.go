package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/schoolfees/internal/auth"
	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage/sqlite"
)

const testSecret = "test-secret-0123456789"

// testEnv is a running fee API backed by a temp SQLite database.
type testEnv struct {
	t      *testing.T
	server *httptest.Server
	store  *sqlite.SQLiteStore
	jwt    *auth.JWTManager

	admin      string
	accountant string
	teacher    string
}

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "schoolfees-service-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	fees := NewFeeService(store,
		WithClock(func() time.Time { return testNow }),
		WithSchool("Green Valley School", "INR"),
	)

	mux := http.NewServeMux()
	fees.Register(mux, middleware.RequireAuth(jwtManager))
	path, handler := NewLedgerServiceHandler(NewLedgerService(fees),
		Interceptors(middleware.RequireAuthInterceptor(jwtManager)))
	mux.Handle(path, handler)

	server := httptest.NewServer(middleware.Logging(mux))
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	env := &testEnv{t: t, server: server, store: store, jwt: jwtManager}
	env.admin = env.token("u-admin", auth.RoleAdmin)
	env.accountant = env.token("u-acc", auth.RoleAccountant)
	env.teacher = env.token("u-teacher", auth.RoleTeacher)
	return env
}

func (e *testEnv) token(userID string, role auth.Role) string {
	e.t.Helper()
	tok, err := e.jwt.Generate(auth.Session{UserID: userID, Role: role})
	if err != nil {
		e.t.Fatalf("failed to generate token: %v", err)
	}
	return tok
}

// do sends a JSON request and decodes the response into out when given.
// It returns the status code and the raw body.
func (e *testEnv) do(method, path, token string, body, out any) (int, string) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("failed to marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	if err != nil {
		e.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("failed to decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, string(raw)
}

// mustDo is do with an expected status.
func (e *testEnv) mustDo(want int, method, path, token string, body, out any) {
	e.t.Helper()
	if got, raw := e.do(method, path, token, body, out); got != want {
		e.t.Fatalf("%s %s: status %d, want %d: %s", method, path, got, want, raw)
	}
}

// seed creates a class 5 student with a structure of 2000 split into two
// installments of 1000, due 2024-04-10 and 2024-06-10. The fees come back
// ordered by due date.
func (e *testEnv) seed(name string) (models.StudentRef, []models.StudentFee) {
	e.t.Helper()

	var fs models.FeeStructure
	e.mustDo(http.StatusCreated, "POST", "/fees-structure", e.admin, map[string]any{
		"classId":          "5",
		"academicYearId":   "2024",
		"installmentLabel": "Term 1",
		"feeTypeAmounts":   []map[string]any{{"feeTypeId": e.feeType("Tuition"), "amount": 2000}},
		"dueDates":         []string{"2024-04-10", "2024-06-10"},
	}, &fs)

	var student models.StudentRef
	e.mustDo(http.StatusCreated, "POST", "/students", e.admin, map[string]string{
		"name": name, "admissionNo": "ADM-" + name, "classId": "5", "sectionId": "A",
	}, &student)

	e.mustDo(http.StatusCreated, "POST", "/student-fees", e.admin, map[string]any{
		"studentId":      student.ID,
		"feeStructureId": fs.ID,
	}, nil)
	return student, e.listFees(student.ID)
}

func (e *testEnv) feeType(name string) string {
	e.t.Helper()
	var ft models.FeeType
	e.mustDo(http.StatusCreated, "POST", "/fee-types", e.admin, map[string]string{"name": name}, &ft)
	return ft.ID
}

func (e *testEnv) listFees(studentID string) []models.StudentFee {
	e.t.Helper()
	var fees []models.StudentFee
	e.mustDo(http.StatusOK, "GET", "/student-fees?studentId="+studentID, e.accountant, nil, &fees)
	return fees
}

func TestFeeStructure_TotalDerived(t *testing.T) {
	env := setupTestServer(t)

	tuition := env.feeType("Tuition")
	lab := env.feeType("Lab")

	var fs models.FeeStructure
	env.mustDo(http.StatusCreated, "POST", "/fees-structure", env.admin, map[string]any{
		"classId":          "7",
		"academicYearId":   "2024",
		"installmentLabel": "Annual",
		"feeTypeAmounts": []map[string]any{
			{"feeTypeId": tuition, "amount": 1200.50},
			{"feeTypeId": lab, "amount": 300.25},
		},
		"dueDates": []string{"2024-04-10"},
	}, &fs)

	if fs.TotalAmount != 1500.75 {
		t.Errorf("TotalAmount = %v, want 1500.75", fs.TotalAmount)
	}

	var list []models.FeeStructure
	env.mustDo(http.StatusOK, "GET", "/fees-structure?academicYearId=2024", env.teacher, nil, &list)
	if len(list) != 1 || list[0].ID != fs.ID {
		t.Errorf("expected the structure in the list, got %+v", list)
	}
}

func TestFeeStructure_Validation(t *testing.T) {
	env := setupTestServer(t)

	status, raw := env.do("POST", "/fees-structure", env.admin, map[string]any{
		"classId":          "7",
		"academicYearId":   "2024",
		"installmentLabel": "Annual",
		"feeTypeAmounts":   []map[string]any{{"feeTypeId": "ft-1", "amount": 100}},
		"dueDates":         []string{"10/04/2024"},
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if !strings.Contains(raw, "dueDates") {
		t.Errorf("error should name the field: %s", raw)
	}
}

func TestAssignFee_SplitsInstallments(t *testing.T) {
	env := setupTestServer(t)

	var fs models.FeeStructure
	env.mustDo(http.StatusCreated, "POST", "/fees-structure", env.admin, map[string]any{
		"classId":          "5",
		"academicYearId":   "2024",
		"installmentLabel": "Quarterly",
		"feeTypeAmounts":   []map[string]any{{"feeTypeId": env.feeType("Tuition"), "amount": 1000}},
		"dueDates":         []string{"2024-04-10", "2024-07-10", "2024-10-10"},
	}, &fs)
	var d models.DiscountType
	env.mustDo(http.StatusCreated, "POST", "/discount-types", env.admin, map[string]any{
		"kind": "PERCENTAGE", "value": 10,
	}, &d)
	var student models.StudentRef
	env.mustDo(http.StatusCreated, "POST", "/students", env.admin, map[string]string{
		"name": "Asha", "classId": "5",
	}, &student)

	var fees []models.StudentFee
	env.mustDo(http.StatusCreated, "POST", "/student-fees", env.admin, map[string]any{
		"studentId":      student.ID,
		"feeStructureId": fs.ID,
		"discountTypeId": d.ID,
	}, &fees)

	if len(fees) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(fees))
	}
	want := []float64{300, 300, 300}
	for i, f := range fees {
		if f.FeeTotalAmount != want[i] {
			t.Errorf("installment %d = %v, want %v", i, f.FeeTotalAmount, want[i])
		}
		if f.Status != models.StatusNotStarted {
			t.Errorf("installment %d status = %s, want not_started", i, f.Status)
		}
		if f.AcademicYearID != "2024" {
			t.Errorf("installment %d academic year = %q", i, f.AcademicYearID)
		}
	}
}

func TestListStudentFees_ServerStatus(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Ravi")

	if len(fees) != 2 {
		t.Fatalf("expected 2 fees, got %d", len(fees))
	}
	byDue := map[string]models.StudentFee{}
	for _, f := range fees {
		byDue[f.DueDate.Format(ledger.DateLayout)] = f
	}

	if got := byDue["2024-04-10"].Status; got != models.StatusOverdue {
		t.Errorf("past-due fee status = %s, want overdue", got)
	}
	if got := byDue["2024-06-10"].Status; got != models.StatusNotStarted {
		t.Errorf("future fee status = %s, want not_started", got)
	}
}

func TestPayments_CreateAndStatus(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Meena")
	fee := fees[0]

	var p models.Payment
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId":    fee.ID,
		"feesStructureId": fee.FeeStructureID,
		"amount":          400,
		"paidOn":          "2024-05-01",
		"mode":            "cash",
	}, &p)
	if p.ID == "" || p.Amount != 400 || p.StudentFeeID != fee.ID {
		t.Fatalf("unexpected payment: %+v", p)
	}

	env.mustDo(http.StatusOK, "PUT", "/student-fees", env.accountant, map[string]any{
		"studentFeeId": fee.ID,
		"status":       "pending",
	}, nil)

	var payments []models.Payment
	env.mustDo(http.StatusOK, "GET", "/student-fee-payments?studentFeeId="+fee.ID, env.teacher, nil, &payments)
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}

	stored, err := env.store.GetStudentFee(t.Context(), fee.ID)
	if err != nil {
		t.Fatalf("GetStudentFee failed: %v", err)
	}
	if stored.TotalPaid != 400 || stored.Status != models.StatusPending {
		t.Errorf("stored fee = paid %v status %s, want 400 pending", stored.TotalPaid, stored.Status)
	}
}

func TestPayments_Rejected(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Kiran")
	fee := fees[0]

	tests := []struct {
		name    string
		body    map[string]any
		wantMsg string
	}{
		{
			name:    "exceeds remaining",
			body:    map[string]any{"studentFeeId": fee.ID, "amount": 1000.01, "mode": "cash"},
			wantMsg: "amount cannot exceed remaining amount",
		},
		{
			name:    "three decimals",
			body:    map[string]any{"studentFeeId": fee.ID, "amount": 10.555, "mode": "cash"},
			wantMsg: "two decimals",
		},
		{
			name:    "zero",
			body:    map[string]any{"studentFeeId": fee.ID, "amount": 0, "mode": "cash"},
			wantMsg: "amount",
		},
		{
			name:    "unknown mode",
			body:    map[string]any{"studentFeeId": fee.ID, "amount": 10, "mode": "barter"},
			wantMsg: "mode",
		},
		{
			name:    "bus fee on tuition endpoint",
			body:    map[string]any{"studentBusFeeId": "b-1", "amount": 10, "mode": "cash"},
			wantMsg: "tuition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := env.do("POST", "/student-fee-payments", env.accountant, tt.body, nil)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", status, raw)
			}
			if !strings.Contains(raw, tt.wantMsg) {
				t.Errorf("error %s should mention %q", raw, tt.wantMsg)
			}
		})
	}
}

func TestPayments_Edit(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Divya")
	fee := fees[0]

	var first, second models.Payment
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 600, "mode": "upi",
	}, &first)
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 300, "mode": "cash",
	}, &second)

	// 300 already paid elsewhere, so the first payment can grow to 700
	var edited models.Payment
	env.mustDo(http.StatusOK, "PUT", "/student-fee-payments?id="+first.ID, env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 700, "mode": "upi",
	}, &edited)
	if edited.Amount != 700 {
		t.Errorf("edited amount = %v, want 700", edited.Amount)
	}

	status, raw := env.do("PUT", "/student-fee-payments?id="+first.ID, env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 700.01, "mode": "upi",
	}, nil)
	if status != http.StatusBadRequest || !strings.Contains(raw, "cannot exceed the fee amount") {
		t.Errorf("over-edit: status %d body %s", status, raw)
	}

	status, _ = env.do("PUT", "/student-fee-payments?id="+first.ID, env.accountant, map[string]any{
		"studentFeeId": fees[1].ID, "amount": 10, "mode": "upi",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("editing against another fee: status %d, want 400", status)
	}
}

func TestPayments_DeleteFreesBalance(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Farah")
	fee := fees[0]

	var p models.Payment
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 1000, "mode": "card",
	}, &p)
	status, _ := env.do("POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 1, "mode": "card",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("payment on a fully paid fee: status %d, want 400", status)
	}

	env.mustDo(http.StatusNoContent, "DELETE", "/student-fee-payments?id="+p.ID, env.accountant, nil, nil)
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 1000, "mode": "card",
	}, nil)
}

func TestSettlePayment(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Imran")
	fee := fees[0]

	var resp SettleResponse
	env.mustDo(http.StatusOK, "POST", "/student-fee-payments/settle", env.accountant, map[string]any{
		"studentFeeId": fee.ID, "amount": 1000, "mode": "bank_transfer",
	}, &resp)
	if resp.Decision.Status != models.StatusPaid || resp.Decision.RemainingAfter != 0 {
		t.Errorf("decision = %+v, want paid with nothing remaining", resp.Decision)
	}

	stored, err := env.store.GetStudentFee(t.Context(), fee.ID)
	if err != nil {
		t.Fatalf("GetStudentFee failed: %v", err)
	}
	if stored.Status != models.StatusPaid {
		t.Errorf("stored status = %s, want paid", stored.Status)
	}

	// shrinking the payment reopens the fee
	env.mustDo(http.StatusOK, "POST", "/student-fee-payments/settle", env.accountant, map[string]any{
		"id": resp.Payment.ID, "studentFeeId": fee.ID, "amount": 250, "mode": "bank_transfer",
	}, &resp)
	if resp.Decision.Status != models.StatusPending || resp.Decision.RemainingAfter != 750 {
		t.Errorf("decision after edit = %+v", resp.Decision)
	}
}

func TestLateFees(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Leela")
	overdue := fees[0]

	var rule models.LateFeeRule
	env.mustDo(http.StatusCreated, "POST", "/late-fee-rules", env.admin, map[string]any{
		"classIds": []string{"5"}, "academicYearId": "2024", "amount": 50,
	}, &rule)

	var applied map[string]int
	env.mustDo(http.StatusOK, "POST", "/late-fee-rules/apply?id="+rule.ID, env.admin, nil, &applied)
	if applied["applied"] != 1 {
		t.Errorf("applied = %d, want 1 (only the overdue fee)", applied["applied"])
	}
	env.mustDo(http.StatusOK, "POST", "/late-fee-rules/apply?id="+rule.ID, env.admin, nil, &applied)
	if applied["applied"] != 0 {
		t.Errorf("second apply = %d, want 0", applied["applied"])
	}

	var manual models.LateFeeRecord
	env.mustDo(http.StatusCreated, "POST", "/student-late-fees", env.accountant, map[string]any{
		"studentFeeId": overdue.ID, "lateFeeAmount": 25,
	}, &manual)

	var records []models.LateFeeRecord
	env.mustDo(http.StatusOK, "GET", "/student-late-fees?studentFeeId="+overdue.ID, env.teacher, nil, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 late fees, got %d", len(records))
	}

	// late fees raise the ceiling: 1000 + 50 + 25
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": overdue.ID, "amount": 1075, "mode": "cash",
	}, nil)

	env.mustDo(http.StatusNoContent, "PUT", "/student-late-fees/waive?id="+manual.ID, env.admin, nil, nil)
	env.mustDo(http.StatusOK, "GET", "/student-late-fees?studentFeeId="+overdue.ID, env.teacher, nil, &records)
	waived := 0
	for _, r := range records {
		if r.IsWaived {
			waived++
		}
	}
	if waived != 1 {
		t.Errorf("waived records = %d, want 1", waived)
	}
}

func TestBusFees(t *testing.T) {
	env := setupTestServer(t)
	student, _ := env.seed("Sunil")

	var bus models.StudentBusFee
	env.mustDo(http.StatusCreated, "POST", "/student-bus-fees", env.admin, map[string]any{
		"studentId":        student.ID,
		"academicYearId":   "2024",
		"routeDestination": "Lake Road",
		"amount":           1200,
		"dueDate":          "2024-06-01",
	}, &bus)

	env.mustDo(http.StatusCreated, "POST", "/student-bus-fee-payments", env.accountant, map[string]any{
		"studentBusFeeId": bus.ID, "amount": 200, "mode": "cash",
	}, nil)
	env.mustDo(http.StatusOK, "PUT", "/student-bus-fees", env.accountant, map[string]any{
		"studentBusFeeId": bus.ID, "status": "pending",
	}, nil)

	status, raw := env.do("POST", "/student-bus-fee-payments", env.accountant, map[string]any{
		"studentBusFeeId": bus.ID, "amount": 1000.01, "mode": "cash",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("overpaying bus fee: status %d: %s", status, raw)
	}

	var flat []models.StudentBusFee
	env.mustDo(http.StatusOK, "GET", "/student-bus-fees?academicYearId=2024", env.teacher, nil, &flat)
	if len(flat) != 1 || flat[0].TotalPaidFees != 200 || flat[0].Status != models.StatusPending {
		t.Errorf("flat list = %+v", flat)
	}

	var groups []ledger.BusGroup
	env.mustDo(http.StatusOK, "GET", "/student-bus-fees?academicYearId=2024&useStudentClassAggregation=true", env.teacher, nil, &groups)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Student.ID != student.ID || groups[0].TotalRemaining != 1000 {
		t.Errorf("group = %+v", groups[0])
	}

	status, raw = env.do("GET", "/student-bus-fees?academicYearId=1999&useStudentClassAggregation=true", env.teacher, nil, nil)
	if status != http.StatusOK || strings.TrimSpace(raw) != "[]" {
		t.Errorf("empty aggregation: status %d, body %q, want 200 []", status, raw)
	}
}

func TestReceipt(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Nisha")

	var p models.Payment
	env.mustDo(http.StatusCreated, "POST", "/student-fee-payments", env.accountant, map[string]any{
		"studentFeeId": fees[0].ID, "amount": 1000, "mode": "cheque", "paidOn": "2024-05-01",
	}, &p)

	status, page := env.do("GET", "/receipts/"+p.ID, env.accountant, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, page)
	}
	for _, want := range []string{"Green Valley School", "Nisha", "ADM-Nisha", "Term 1", "INR 1,000.00", "01 May 2024"} {
		if !strings.Contains(page, want) {
			t.Errorf("receipt missing %q", want)
		}
	}

	status, _ = env.do("GET", "/receipts/nope", env.accountant, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown payment: status %d, want 404", status)
	}
}

func TestAuthorization(t *testing.T) {
	env := setupTestServer(t)
	_, fees := env.seed("Tara")
	payment := map[string]any{"studentFeeId": fees[0].ID, "amount": 10, "mode": "cash"}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "no token", method: "GET", path: "/student-fees", want: http.StatusUnauthorized},
		{name: "bad token", method: "GET", path: "/student-fees", token: "garbage", want: http.StatusUnauthorized},
		{name: "teacher reads", method: "GET", path: "/student-fees", token: env.teacher, want: http.StatusOK},
		{name: "teacher cannot pay", method: "POST", path: "/student-fee-payments", token: env.teacher, body: payment, want: http.StatusForbidden},
		{name: "accountant pays", method: "POST", path: "/student-fee-payments", token: env.accountant, body: payment, want: http.StatusCreated},
		{name: "accountant cannot create rules", method: "POST", path: "/late-fee-rules", token: env.accountant,
			body: map[string]any{"classIds": []string{"5"}, "academicYearId": "2024", "amount": 5}, want: http.StatusForbidden},
		{name: "healthz is open", method: "GET", path: "/healthz", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := env.do(tt.method, tt.path, tt.token, tt.body, nil)
			if status != tt.want {
				t.Errorf("status = %d, want %d: %s", status, tt.want, raw)
			}
		})
	}
}
