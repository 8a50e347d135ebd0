package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(paymentsRecorded.WithLabelValues("tuition", "create"))
	PaymentRecorded("tuition", "create")
	if got := testutil.ToFloat64(paymentsRecorded.WithLabelValues("tuition", "create")); got != before+1 {
		t.Errorf("payments_recorded_total = %v, want %v", got, before+1)
	}

	PaymentRejected("bus")
	if got := testutil.ToFloat64(paymentsRejected.WithLabelValues("bus")); got < 1 {
		t.Errorf("payments_rejected_total = %v, want >= 1", got)
	}

	StatusUpdateFailed("tuition")
	if got := testutil.ToFloat64(statusUpdatesFailed.WithLabelValues("tuition")); got < 1 {
		t.Errorf("status_updates_failed_total = %v, want >= 1", got)
	}

	before = testutil.ToFloat64(lateFeesApplied)
	LateFeesApplied(3)
	if got := testutil.ToFloat64(lateFeesApplied); got != before+3 {
		t.Errorf("late_fees_applied_total = %v, want %v", got, before+3)
	}
}

func TestHandlerExposesRequests(t *testing.T) {
	ObserveRequest("GET /student-fees", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `schoolfees_http_requests_total{code="200",route="GET /student-fees"}`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}
