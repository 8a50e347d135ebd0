// Package client talks to the fee API and runs the payment desk flow on
// top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/models"
)

// APIError is a non-2xx response from the fee API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a thin typed wrapper over the REST endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the API at baseURL authenticating with token.
// A nil httpClient uses a client with a 30 second timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if page, ok := out.(*string); ok {
		*page = string(raw)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func apiError(status int, raw []byte) *APIError {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &APIError{Status: status, Message: body.Error}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// Query narrows a ledger fetch.
type Query struct {
	AcademicYearID string
	ClassID        string
	SectionID      string
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.AcademicYearID != "" {
		v.Set("academicYearId", q.AcademicYearID)
	}
	if q.ClassID != "" {
		v.Set("classId", q.ClassID)
	}
	if q.SectionID != "" {
		v.Set("sectionId", q.SectionID)
	}
	return v
}

// StudentFees lists tuition fees with server-derived statuses.
func (c *Client) StudentFees(ctx context.Context, q Query) ([]models.StudentFee, error) {
	var out []models.StudentFee
	err := c.do(ctx, http.MethodGet, "/student-fees", q.values(), nil, &out)
	return out, err
}

// Payments lists active tuition payments, or bus payments when bus is set.
func (c *Client) Payments(ctx context.Context, bus bool) ([]models.Payment, error) {
	path := "/student-fee-payments"
	if bus {
		path = "/student-bus-fee-payments"
	}
	var out []models.Payment
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

// LateFees lists every late fee record, waived ones included.
func (c *Client) LateFees(ctx context.Context) ([]models.LateFeeRecord, error) {
	var out []models.LateFeeRecord
	err := c.do(ctx, http.MethodGet, "/student-late-fees", nil, nil, &out)
	return out, err
}

// BusFees lists the flat transport fees of a year.
func (c *Client) BusFees(ctx context.Context, academicYearID string) ([]models.StudentBusFee, error) {
	q := url.Values{}
	if academicYearID != "" {
		q.Set("academicYearId", academicYearID)
	}
	var out []models.StudentBusFee
	err := c.do(ctx, http.MethodGet, "/student-bus-fees", q, nil, &out)
	return out, err
}

// PaymentBody is the wire form of a payment write.
type PaymentBody struct {
	StudentFeeID    string             `json:"studentFeeId,omitempty"`
	StudentBusFeeID string             `json:"studentBusFeeId,omitempty"`
	FeesStructureID string             `json:"feesStructureId,omitempty"`
	Amount          float64            `json:"amount"`
	PaidOn          string             `json:"paidOn,omitempty"`
	Mode            models.PaymentMode `json:"mode"`
}

func paymentPath(kind ledger.Kind) string {
	if kind == ledger.KindBus {
		return "/student-bus-fee-payments"
	}
	return "/student-fee-payments"
}

// CreatePayment records a payment against a fee of the given kind.
func (c *Client) CreatePayment(ctx context.Context, kind ledger.Kind, body PaymentBody) (*models.Payment, error) {
	var out models.Payment
	if err := c.do(ctx, http.MethodPost, paymentPath(kind), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePayment edits payment id.
func (c *Client) UpdatePayment(ctx context.Context, kind ledger.Kind, id string, body PaymentBody) (*models.Payment, error) {
	var out models.Payment
	q := url.Values{"id": {id}}
	if err := c.do(ctx, http.MethodPut, paymentPath(kind), q, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus writes the stored status of a fee.
func (c *Client) UpdateStatus(ctx context.Context, kind ledger.Kind, feeID string, status models.FeeStatus) error {
	if kind == ledger.KindBus {
		return c.do(ctx, http.MethodPut, "/student-bus-fees", nil, map[string]any{
			"studentBusFeeId": feeID,
			"status":          status,
		}, nil)
	}
	return c.do(ctx, http.MethodPut, "/student-fees", nil, map[string]any{
		"studentFeeId": feeID,
		"status":       status,
	}, nil)
}

// Receipt fetches the printable HTML receipt of a payment.
func (c *Client) Receipt(ctx context.Context, paymentID string) (string, error) {
	var page string
	err := c.do(ctx, http.MethodGet, "/receipts/"+url.PathEscape(paymentID), nil, nil, &page)
	return page, err
}
