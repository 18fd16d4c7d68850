package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/ariefcatur/go-course-commerce/internal/orders"
	"github.com/ariefcatur/go-course-commerce/internal/payout"
	"github.com/ariefcatur/go-course-commerce/internal/redisx"
	"github.com/ariefcatur/go-course-commerce/internal/store/memory"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type memCache struct {
	mu   sync.Mutex
	m    map[string]redisx.OrderStatus
	hits int
}

func (c *memCache) Get(_ context.Context, id string) (redisx.OrderStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[id]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *memCache) Set(_ context.Context, s redisx.OrderStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[s.OrderID] = s
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type memIdem struct {
	mu sync.Mutex
	m  map[string]string
}

func (i *memIdem) Lookup(_ context.Context, user, key string) (string, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.m[user+"/"+key]
	return id, ok, nil
}

func (i *memIdem) Remember(_ context.Context, user, key, orderID string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if id, ok := i.m[user+"/"+key]; ok {
		return id, nil
	}
	i.m[user+"/"+key] = orderID
	return orderID, nil
}

type testServer struct {
	router *chi.Mux
	cache  *memCache
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{cache: &memCache{m: map[string]redisx.OrderStatus{}}, now: t0}
	catalog := commerce.StaticCatalog{
		"go-101": {ID: "go-101", Title: "Go Basics", InstructorID: "ins-a", Price: 100000, Published: true},
	}
	svc := commerce.New(memory.New(), catalog, commerce.DefaultPolicy(),
		commerce.WithClock(func() time.Time { return ts.now }))
	h := &Handler{
		Svc:    svc,
		Status: ts.cache,
		Idem:   &memIdem{m: map[string]string{}},
		Now:    func() time.Time { return ts.now },
	}
	ts.router = NewRouter(zerolog.Nop(), nil)
	h.Register(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status %d, want %d: %s", rec.Code, code, rec.Body.String())
	}
}

func TestCheckoutToPayoutFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/orders", commerce.CheckoutRequest{UserID: "u1", CourseIDs: []string{"go-101"}})
	expect(t, rec, http.StatusCreated)
	o := decodeInto[orders.Order](t, rec)
	if o.Status != orders.StatusPending || o.TotalAmount != 100000 {
		t.Fatalf("order: %+v", o)
	}

	rec = ts.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", map[string]string{"gateway_reference": "gw-1"})
	expect(t, rec, http.StatusOK)
	if got := decodeInto[orders.Order](t, rec); got.Status != orders.StatusPaid {
		t.Fatalf("confirm: %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/orders/"+o.ID+"/status", nil)
	expect(t, rec, http.StatusOK)
	if s := decodeInto[redisx.OrderStatus](t, rec); s.Status != "PAID" || ts.cache.hits != 1 {
		t.Errorf("status %+v from cache hits=%d", s, ts.cache.hits)
	}

	rec = ts.do(t, http.MethodGet, "/wallets/ins-a", nil)
	expect(t, rec, http.StatusOK)
	if b := decodeInto[commerce.Balance](t, rec); b.Hold != 70000 || b.Available != 0 {
		t.Fatalf("before settlement: %+v", b)
	}

	rec = ts.do(t, http.MethodPost, "/admin/settlement/sweep", map[string]time.Time{"as_of": t0.Add(8 * 24 * time.Hour)})
	expect(t, rec, http.StatusOK)
	if n := decodeInto[map[string]any](t, rec)["settled"]; n != float64(1) {
		t.Fatalf("settled %v", n)
	}

	bank := payout.BankDetails{BankName: "BCA", AccountNumber: "123", AccountHolder: "Ana"}
	rec = ts.do(t, http.MethodPost, "/payouts", commerce.PayoutRequest{InstructorID: "ins-a", Amount: 60000, Bank: bank})
	expect(t, rec, http.StatusCreated)
	p := decodeInto[payout.Request](t, rec)

	rec = ts.do(t, http.MethodPost, "/payouts", commerce.PayoutRequest{InstructorID: "ins-a", Amount: 50000, Bank: bank})
	expect(t, rec, http.StatusUnprocessableEntity)

	for _, step := range []string{"approve", "process", "complete"} {
		rec = ts.do(t, http.MethodPost, "/admin/payouts/"+p.ID+"/"+step, nil)
		expect(t, rec, http.StatusOK)
	}
	if got := decodeInto[payout.Request](t, rec); got.Status != payout.StatusCompleted {
		t.Errorf("payout %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/wallets/ins-a", nil)
	if b := decodeInto[commerce.Balance](t, rec); b.Available != 10000 || b.TotalWithdrawn != 60000 {
		t.Errorf("after payout: %+v", b)
	}
	rec = ts.do(t, http.MethodPost, "/wallets/ins-a/verify", nil)
	expect(t, rec, http.StatusOK)

	rec = ts.do(t, http.MethodGet, "/instructors/ins-a/payouts", nil)
	if ps := decodeInto[map[string][]payout.Request](t, rec)["payouts"]; len(ps) != 1 {
		t.Errorf("payouts: %+v", ps)
	}
}

func TestIdempotentCheckout(t *testing.T) {
	ts := newTestServer(t)
	req := commerce.CheckoutRequest{UserID: "u1", CourseIDs: []string{"go-101"}}

	first := ts.do(t, http.MethodPost, "/orders", req, headerIdempotencyKey, "k-1")
	expect(t, first, http.StatusCreated)
	again := ts.do(t, http.MethodPost, "/orders", req, headerIdempotencyKey, "k-1")
	expect(t, again, http.StatusOK)

	a, b := decodeInto[orders.Order](t, first), decodeInto[orders.Order](t, again)
	if a.ID != b.ID {
		t.Errorf("retry created a second order: %s vs %s", a.ID, b.ID)
	}
	other := ts.do(t, http.MethodPost, "/orders", req, headerIdempotencyKey, "k-2")
	expect(t, other, http.StatusCreated)
}

func TestErrorResponses(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown order", http.MethodGet, "/orders/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad json", http.MethodPost, "/orders/preview", "{", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty cart", http.MethodPost, "/orders/preview", commerce.CheckoutRequest{UserID: "u1"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown coupon", http.MethodPost, "/orders/preview",
			commerce.CheckoutRequest{UserID: "u1", CourseIDs: []string{"go-101"}, CouponCodes: []string{"NOPE"}},
			http.StatusUnprocessableEntity, "COUPON_INVALID"},
		{"confirm without reference", http.MethodPost, "/orders/x/confirm", map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"reject without reason", http.MethodPost, "/admin/payouts/p1/reject", map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, tc.method, tc.path, tc.body)
			expect(t, rec, tc.status)
			body := decodeInto[map[string]errorBody](t, rec)
			if body["error"].Code != tc.code {
				t.Errorf("code %q, want %q", body["error"].Code, tc.code)
			}
		})
	}
}

func TestCouponRejectionCarriesReasons(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/orders/preview",
		commerce.CheckoutRequest{UserID: "u1", CourseIDs: []string{"go-101"}, CouponCodes: []string{"NOPE"}})
	body := decodeInto[map[string]errorBody](t, rec)
	if len(body["error"].Reasons) != 1 || body["error"].Reasons[0] != "COUPON_NOT_FOUND" {
		t.Errorf("reasons: %+v", body["error"])
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.Invalid("x", "y"), http.StatusBadRequest},
		{fmt.Errorf("order o1: %w", errs.ErrNotFound), http.StatusNotFound},
		{errs.ErrInvalidStateTransition, http.StatusConflict},
		{errs.ErrConcurrencyConflict, http.StatusConflict},
		{&errs.CouponError{Code: "X", Err: errs.ErrCouponNoLongerApplicable}, http.StatusConflict},
		{errs.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{errs.ErrWalletFrozen, http.StatusLocked},
		{errs.ErrLedgerIntegrity, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Errorf("statusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	expect(t, ts.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)
	expect(t, ts.do(t, http.MethodGet, "/readyz", nil), http.StatusOK)
	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	expect(t, rec, http.StatusOK)
	if !bytes.Contains(rec.Body.Bytes(), []byte("commerce_http_request_duration_seconds")) {
		t.Error("http metrics not exported")
	}
}
