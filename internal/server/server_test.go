package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"tripplanner/config"
	"tripplanner/internal/auth"
	"tripplanner/internal/db"
	"tripplanner/internal/itinerary"
	"tripplanner/internal/models"
	"tripplanner/internal/notify"
	"tripplanner/internal/payment"
	"tripplanner/internal/quota"
	"tripplanner/pkg/logger"
)

type testApp struct {
	router *gin.Engine
	store  *db.MemoryDB
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestApp(t *testing.T, pinger Pinger) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	store := db.NewMemoryDB()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	sessions := auth.NewSessions(config.SessionConfig{Secret: "0123456789abcdef0123456789abcdef"})
	authSvc := auth.NewService(store, sessions, []string{"admin@example.com"}, log).WithCost(bcrypt.MinCost)
	tracker := quota.NewTracker(store, quota.WithClock(clock))
	itineraries := itinerary.NewService(store, tracker, itinerary.NewGenerator(nil, nil, log), nil, log)
	payments := payment.NewService(store, notify.NewLogDispatcher(log), config.PaymentConfig{
		UPIID:           "tripplanner@upi",
		PayeeName:       "Trip Planner",
		Currency:        "INR",
		ProAmount:       499,
		PerExportAmount: 99,
	}, log, payment.WithClock(clock))

	if pinger == nil {
		pinger = store
	}
	router := NewRouter(Deps{
		Auth:        authSvc,
		Itineraries: itineraries,
		Quota:       tracker,
		Payments:    payments,
		Store:       pinger,
		Logger:      log,
	})
	return &testApp{router: router, store: store}
}

// do sends a JSON request and decodes the JSON response.
func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)

	out := map[string]interface{}{}
	if resp.Body.Len() > 0 {
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", resp.Body.String(), err)
		}
	}
	return resp, out
}

func (a *testApp) register(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":     email,
		"password":  "hunter22",
		"firstName": "Test",
		"lastName":  "User",
	}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("register %s: %d %v", email, resp.Code, body)
	}
	for _, c := range resp.Result().Cookies() {
		if c.Name == "tripplanner_session" {
			return c
		}
	}
	t.Fatalf("register did not set a session cookie")
	return nil
}

var tripBody = map[string]interface{}{
	"userName":     "Ada",
	"destinations": []string{"Japan"},
	"startDate":    "2025-07-01",
	"endDate":      "2025-07-05",
	"travelerType": "Solo",
	"budget":       "2000",
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	resp, body := app.do(t, http.MethodGet, "/health", nil, nil)
	if resp.Code != http.StatusOK || body["status"] != "healthy" || body["database"] != "ok" {
		t.Fatalf("unexpected health %d %v", resp.Code, body)
	}

	down := newTestApp(t, downStore{})
	resp, body = down.do(t, http.MethodGet, "/health", nil, nil)
	if resp.Code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Fatalf("expected 503 when the database is down, got %d %v", resp.Code, body)
	}
}

func TestAuthEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := app.do(t, http.MethodGet, "/get-usage", nil, nil)
	if resp.Code != http.StatusUnauthorized || body["success"] != false {
		t.Fatalf("expected 401 without session, got %d %v", resp.Code, body)
	}

	cookie := app.register(t, "ada@example.com")

	resp, body = app.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "ADA@example.com", "password": "x", "firstName": "A", "lastName": "B",
	}, nil)
	if resp.Code != http.StatusConflict || body["error"] != "email already registered" {
		t.Fatalf("expected 409 on duplicate, got %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	}, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodGet, "/auth/check", nil, cookie)
	if resp.Code != http.StatusOK || body["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %d %v", resp.Code, body)
	}
	resp, body = app.do(t, http.MethodGet, "/auth/check", nil, nil)
	if resp.Code != http.StatusOK || body["authenticated"] != false {
		t.Fatalf("expected anonymous check, got %d %v", resp.Code, body)
	}
}

func TestGenerateItineraryQuota(t *testing.T) {
	app := newTestApp(t, nil)
	cookie := app.register(t, "ada@example.com")

	for i := 0; i < quota.DailyLimit; i++ {
		resp, body := app.do(t, http.MethodPost, "/generate-itinerary", tripBody, cookie)
		if resp.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("generation %d failed: %d %v", i+1, resp.Code, body)
		}
		want := float64(quota.DailyLimit - i - 1)
		if body["free_uses_remaining"] != want {
			t.Fatalf("free_uses_remaining = %v, want %v", body["free_uses_remaining"], want)
		}
		days := body["itinerary"].(map[string]interface{})["days"].([]interface{})
		if len(days) != 5 {
			t.Fatalf("expected 5 days, got %d", len(days))
		}
	}

	resp, body := app.do(t, http.MethodPost, "/generate-itinerary", tripBody, cookie)
	if resp.Code != http.StatusTooManyRequests || body["success"] != false {
		t.Fatalf("expected 429, got %d %v", resp.Code, body)
	}
	if app.store.ItineraryCount() != quota.DailyLimit || app.store.UsageCount() != quota.DailyLimit {
		t.Fatalf("refused request must not write rows: %d itineraries, %d usage",
			app.store.ItineraryCount(), app.store.UsageCount())
	}

	resp, body = app.do(t, http.MethodGet, "/get-usage", nil, cookie)
	if resp.Code != http.StatusOK || body["free_uses_remaining"] != float64(0) || body["last_reset"] != "2025-06-10" {
		t.Fatalf("unexpected usage %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodGet, "/itineraries", nil, cookie)
	if resp.Code != http.StatusOK || len(body["itineraries"].([]interface{})) != quota.DailyLimit {
		t.Fatalf("unexpected list %d %v", resp.Code, body)
	}
}

func TestGenerateItineraryValidation(t *testing.T) {
	app := newTestApp(t, nil)
	cookie := app.register(t, "ada@example.com")

	bad := map[string]interface{}{}
	for k, v := range tripBody {
		bad[k] = v
	}
	delete(bad, "travelerType")

	resp, body := app.do(t, http.MethodPost, "/generate-itinerary", bad, cookie)
	if resp.Code != http.StatusBadRequest || body["error"] != "missing required field: travelerType" {
		t.Fatalf("expected 400 naming travelerType, got %d %v", resp.Code, body)
	}

	bad["travelerType"] = "Solo"
	bad["startDate"] = "07/01/2025"
	resp, _ = app.do(t, http.MethodPost, "/generate-itinerary", bad, cookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", resp.Code)
	}
	if app.store.UsageCount() != 0 {
		t.Fatalf("invalid requests must not consume quota")
	}
}

func TestPaymentApprovalFlow(t *testing.T) {
	app := newTestApp(t, nil)
	userCookie := app.register(t, "ada@example.com")
	adminCookie := app.register(t, "admin@example.com")

	resp, body := app.do(t, http.MethodPost, "/payment/initiate", map[string]string{"plan": "pro"}, userCookie)
	if resp.Code != http.StatusOK || body["status"] != string(models.PaymentInitiated) || body["amount"] != float64(499) {
		t.Fatalf("unexpected initiate %d %v", resp.Code, body)
	}
	paymentID := body["payment_id"].(string)

	resp, body = app.do(t, http.MethodPost, "/payment/verify", map[string]string{
		"payment_id": paymentID, "transaction_id": "TXN42",
	}, userCookie)
	if resp.Code != http.StatusOK || body["status"] != string(models.PaymentPendingVerification) || body["plan"] != "free" {
		t.Fatalf("unexpected verify %d %v", resp.Code, body)
	}

	approvePath := fmt.Sprintf("/admin/approve-payment/%s", paymentID)
	resp, _ = app.do(t, http.MethodPost, approvePath, nil, userCookie)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin approve, got %d", resp.Code)
	}
	p, _ := app.store.GetPayment(context.Background(), paymentID)
	if p.Status != models.PaymentPendingVerification {
		t.Fatalf("non-admin approve changed the payment to %s", p.Status)
	}

	resp, body = app.do(t, http.MethodGet, "/admin/payments?status=pending_verification", nil, adminCookie)
	if resp.Code != http.StatusOK || len(body["payments"].([]interface{})) != 1 {
		t.Fatalf("unexpected admin list %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodPost, approvePath, nil, adminCookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve failed %d %v", resp.Code, body)
	}
	resp, _ = app.do(t, http.MethodPost, approvePath, nil, adminCookie)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second approve, got %d", resp.Code)
	}

	resp, body = app.do(t, http.MethodGet, "/check-pro-access", nil, userCookie)
	if resp.Code != http.StatusOK || body["is_pro"] != true || body["unlimited_access"] != true {
		t.Fatalf("expected pro access after approval, got %d %v", resp.Code, body)
	}
}

func TestAdminPlanOverride(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "ada@example.com")
	adminCookie := app.register(t, "admin@example.com")

	user, _ := app.store.GetUserByEmail(context.Background(), "ada@example.com")
	path := fmt.Sprintf("/admin/users/%d/plan", user.ID)

	resp, body := app.do(t, http.MethodPost, path, map[string]string{"plan": "pro"}, adminCookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected pro override without payment to be refused, got %d %v", resp.Code, body)
	}
	resp, body = app.do(t, http.MethodPost, path, map[string]string{"plan": "per_export"}, adminCookie)
	if resp.Code != http.StatusOK || body["user"].(map[string]interface{})["plan"] != "per_export" {
		t.Fatalf("unexpected override %d %v", resp.Code, body)
	}
}

func TestCardCheckoutDisabled(t *testing.T) {
	app := newTestApp(t, nil)
	cookie := app.register(t, "ada@example.com")

	resp, _ := app.do(t, http.MethodPost, "/payment/checkout", map[string]string{"plan": "pro"}, cookie)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without Stripe, got %d", resp.Code)
	}
	resp, _ = app.do(t, http.MethodPost, "/webhook/stripe", map[string]string{}, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 webhook without Stripe, got %d", resp.Code)
	}
}

func TestBindingErrorsNameTheField(t *testing.T) {
	app := newTestApp(t, nil)
	cookie := app.register(t, "ada@example.com")
	adminCookie := app.register(t, "admin@example.com")

	resp, body := app.do(t, http.MethodPost, "/payment/verify", map[string]string{"transaction_id": "TXN1"}, cookie)
	if resp.Code != http.StatusBadRequest || body["error"] != "missing required field: payment_id" {
		t.Fatalf("unexpected verify response %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodPost, "/payment/manual-verification", map[string]string{"upi_reference": "REF"}, cookie)
	if resp.Code != http.StatusBadRequest || body["error"] != "missing required field: payment_id" {
		t.Fatalf("unexpected manual verification response %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodPost, "/admin/reject-payment/pay-1",
		map[string]string{"reason": strings.Repeat("x", 501)}, adminCookie)
	if resp.Code != http.StatusBadRequest || body["error"] != "reason must be at most 500 characters" {
		t.Fatalf("unexpected reject response %d %v", resp.Code, body)
	}

	resp, body = app.do(t, http.MethodPost, "/payment/verify", map[string]interface{}{"payment_id": 7}, cookie)
	if resp.Code != http.StatusBadRequest || body["error"] != "invalid JSON body" {
		t.Fatalf("unexpected type mismatch response %d %v", resp.Code, body)
	}
}
