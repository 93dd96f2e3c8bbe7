package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v72"

	"tripplanner/config"
	"tripplanner/internal/apperr"
	"tripplanner/internal/db"
	"tripplanner/internal/models"
	"tripplanner/internal/notify"
	"tripplanner/pkg/logger"
)

type recorder struct {
	mu  sync.Mutex
	got []notify.Message
	err error
}

func (r *recorder) Dispatch(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	return r.err
}

func (r *recorder) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.got {
		out = append(out, m.To+":"+m.Template)
	}
	return out
}

var testConfig = config.PaymentConfig{
	UPIID:           "tripplanner@upi",
	PayeeName:       "Trip Planner",
	Currency:        "INR",
	ProAmount:       499,
	PerExportAmount: 99,
}

type fixture struct {
	store *db.MemoryDB
	notes *recorder
	svc   *Service
	user  *models.User
	admin *models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := db.NewMemoryDB()
	notes := &recorder{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)

	f := &fixture{
		store: store,
		notes: notes,
		svc:   NewService(store, notes, testConfig, logger.Nop(), opts...),
		user:  &models.User{Email: "ada@example.com", PasswordHash: "x", Plan: models.PlanFree, Role: models.RoleUser},
		admin: &models.User{Email: "root@example.com", PasswordHash: "x", Plan: models.PlanFree, Role: models.RoleAdmin},
	}
	for _, u := range []*models.User{f.user, f.admin} {
		if err := store.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	return f
}

func TestUPIURI(t *testing.T) {
	got := UPIURI(UPIPayee{VPA: "trip@upi", Name: "Trip Planner"}, 499, "INR", "TripPlanner pro")
	want := "upi://pay?pa=trip@upi&pn=Trip%20Planner&am=499.00&cu=INR&tn=TripPlanner%20pro"
	if got != want {
		t.Fatalf("UPIURI = %q, want %q", got, want)
	}
}

func TestUpgradeFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	co, err := f.svc.Initiate(ctx, f.user, models.PlanPro)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if co.Payment.Status != models.PaymentInitiated || co.Payment.Amount != 499 || co.Payment.Currency != "INR" {
		t.Fatalf("unexpected payment %+v", co.Payment)
	}
	if co.UPIID != testConfig.UPIID {
		t.Fatalf("expected UPI id in checkout, got %q", co.UPIID)
	}

	if _, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, " "); !isValidation(err) {
		t.Fatalf("expected validation error for empty transaction id, got %v", err)
	}

	p, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, "TXN123")
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if p.Status != models.PaymentPendingVerification || p.TransactionID != "TXN123" {
		t.Fatalf("unexpected payment after submit %+v", p)
	}
	if u, _ := f.store.GetUserByID(ctx, f.user.ID); u.Plan != models.PlanFree {
		t.Fatalf("plan must not change before approval, got %s", u.Plan)
	}

	if _, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, "TXN999"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on resubmit, got %v", err)
	}

	if _, err := f.svc.Approve(ctx, f.user, co.Payment.PaymentID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin approve, got %v", err)
	}
	if stored, _ := f.store.GetPayment(ctx, co.Payment.PaymentID); stored.Status != models.PaymentPendingVerification {
		t.Fatalf("non-admin approve changed status to %s", stored.Status)
	}

	p, err = f.svc.Approve(ctx, f.admin, co.Payment.PaymentID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if p.Status != models.PaymentCompleted || p.CompletedAt == nil {
		t.Fatalf("unexpected payment after approve %+v", p)
	}
	if u, _ := f.store.GetUserByID(ctx, f.user.ID); u.Plan != models.PlanPro {
		t.Fatalf("expected pro plan after approval, got %s", u.Plan)
	}

	want := []string{
		notify.AdminRecipient + ":" + notify.TemplatePaymentSubmitted,
		"ada@example.com:" + notify.TemplatePaymentApproved,
	}
	if got := f.notes.templates(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestGenerateQR(t *testing.T) {
	f := newFixture(t)

	co, err := f.svc.GenerateQR(context.Background(), f.user, models.PlanPerExport)
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}
	if co.Payment.Status != models.PaymentPending || co.Payment.Amount != 99 {
		t.Fatalf("unexpected payment %+v", co.Payment)
	}
	if !strings.HasPrefix(co.QRData, "upi://pay?pa=tripplanner@upi&pn=Trip%20Planner&am=99.00&cu=INR&tn=") {
		t.Fatalf("unexpected QR payload %q", co.QRData)
	}
	if !strings.Contains(co.QRData, co.Payment.PaymentID) {
		t.Fatalf("QR note should carry the payment id: %q", co.QRData)
	}

	if _, err := f.svc.GenerateQR(context.Background(), f.user, models.PlanFree); !isValidation(err) {
		t.Fatalf("expected validation error for free plan, got %v", err)
	}
}

func TestSubmitManualScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	co, err := f.svc.GenerateQR(ctx, f.user, models.PlanPro)
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}

	if _, err := f.svc.SubmitManual(ctx, f.admin, co.Payment.PaymentID, "REF1", "499"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's payment, got %v", err)
	}
	if _, err := f.svc.SubmitManual(ctx, f.user, "missing", "REF1", "499"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p, err := f.svc.SubmitManual(ctx, f.user, co.Payment.PaymentID, "REF1", "450")
	if err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	if p.Status != models.PaymentManualVerificationPending || p.UPIReference != "REF1" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if len(f.notes.got) != 1 || !strings.Contains(f.notes.got[0].Params["amount"], "declared 450") {
		t.Fatalf("admin notification should mention the declared amount: %+v", f.notes.got)
	}
}

func TestRejectKeepsPlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	co, _ := f.svc.Initiate(ctx, f.user, models.PlanPro)
	p, err := f.svc.Reject(ctx, f.admin, co.Payment.PaymentID, "amount mismatch")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if p.Status != models.PaymentRejected || p.RejectionReason != "amount mismatch" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if u, _ := f.store.GetUserByID(ctx, f.user.ID); u.Plan != models.PlanFree {
		t.Fatalf("reject changed plan to %s", u.Plan)
	}
	if _, err := f.svc.Approve(ctx, f.admin, co.Payment.PaymentID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("approving a rejected payment should fail, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, f.admin, co.Payment.PaymentID, ""); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("rejecting twice should fail, got %v", err)
	}
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notes.err = errors.New("smtp down")

	co, _ := f.svc.Initiate(ctx, f.user, models.PlanPro)
	if _, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, "TXN1"); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if _, err := f.svc.Approve(ctx, f.admin, co.Payment.PaymentID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
}

func TestReferenceLengthLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	co, _ := f.svc.Initiate(ctx, f.user, models.PlanPro)
	long := strings.Repeat("R", models.MaxReferenceLen+1)

	var v *apperr.ValidationError
	if _, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, long); !errors.As(err, &v) || v.Field != "transaction_id" {
		t.Fatalf("expected transaction_id validation error, got %v", err)
	}
	if _, err := f.svc.SubmitManual(ctx, f.user, co.Payment.PaymentID, long, "499"); !errors.As(err, &v) || v.Field != "upi_reference" {
		t.Fatalf("expected upi_reference validation error, got %v", err)
	}
	if stored, _ := f.store.GetPayment(ctx, co.Payment.PaymentID); stored.Status != models.PaymentInitiated {
		t.Fatalf("rejected submission changed status to %s", stored.Status)
	}

	p, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, strings.Repeat("R", models.MaxReferenceLen))
	if err != nil {
		t.Fatalf("SubmitTransaction at the limit: %v", err)
	}
	if len(p.TransactionID) != models.MaxReferenceLen {
		t.Fatalf("unexpected transaction id length %d", len(p.TransactionID))
	}
}

func TestNilLoggerDefaultsToNop(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	user := &models.User{Email: "ada@example.com", PasswordHash: "x", Plan: models.PlanFree, Role: models.RoleUser}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	svc := NewService(store, &recorder{err: errors.New("chat down")}, testConfig, nil)

	co, err := svc.Initiate(ctx, user, models.PlanPro)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.SubmitTransaction(ctx, user, co.Payment.PaymentID, "TXN1"); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
}

func TestConcurrentApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	co, _ := f.svc.Initiate(ctx, f.user, models.PlanPro)
	if _, err := f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, "TXN1"); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, f.admin, co.Payment.PaymentID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, apperr.ErrInvalidTransition):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one approval, got %d", ok)
	}
}

func TestListRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.Initiate(ctx, f.user, models.PlanPro)
	f.svc.GenerateQR(ctx, f.user, models.PlanPro)

	if _, err := f.svc.List(ctx, f.user, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	all, err := f.svc.List(ctx, f.admin, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
	pending, err := f.svc.List(ctx, f.admin, models.PaymentPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("List pending = %d, %v", len(pending), err)
	}
	if _, err := f.svc.List(ctx, f.admin, "bogus"); !isValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestSetPlanRequiresCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SetPlan(ctx, f.user, f.user.ID, models.PlanPro); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.SetPlan(ctx, f.admin, f.user.ID, models.PlanPro); !isValidation(err) {
		t.Fatalf("expected pro override to be refused, got %v", err)
	}
	if u, err := f.svc.SetPlan(ctx, f.admin, f.user.ID, models.PlanPerExport); err != nil || u.Plan != models.PlanPerExport {
		t.Fatalf("SetPlan per_export = %+v, %v", u, err)
	}

	co, _ := f.svc.Initiate(ctx, f.user, models.PlanPro)
	f.svc.SubmitTransaction(ctx, f.user, co.Payment.PaymentID, "TXN1")
	f.svc.Approve(ctx, f.admin, co.Payment.PaymentID)
	f.svc.SetPlan(ctx, f.admin, f.user.ID, models.PlanFree)

	if u, err := f.svc.SetPlan(ctx, f.admin, f.user.ID, models.PlanPro); err != nil || u.Plan != models.PlanPro {
		t.Fatalf("SetPlan pro after payment = %+v, %v", u, err)
	}
}

type fakeGateway struct {
	created []string
}

func (g *fakeGateway) CreateCheckoutSession(p *models.Payment, _ string) (string, string, error) {
	g.created = append(g.created, p.PaymentID)
	id := fmt.Sprintf("cs_test_%d", len(g.created))
	return id, "https://checkout.stripe.test/" + id, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*CheckoutEvent, error) {
	return nil, errors.New("not used")
}

func TestCheckoutFlow(t *testing.T) {
	ctx := context.Background()

	disabled := newFixture(t)
	if _, err := disabled.svc.StartCheckout(ctx, disabled.user, models.PlanPro); !errors.Is(err, ErrCardPaymentsDisabled) {
		t.Fatalf("expected ErrCardPaymentsDisabled, got %v", err)
	}

	gw := &fakeGateway{}
	f := newFixture(t, WithCardGateway(gw))
	co, err := f.svc.StartCheckout(ctx, f.user, models.PlanPro)
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if co.CheckoutURL == "" || co.Payment.StripeSessionID != "cs_test_1" || co.Payment.Status != models.PaymentPending {
		t.Fatalf("unexpected checkout %+v / %+v", co, co.Payment)
	}

	event := &CheckoutEvent{Type: eventCheckoutCompleted, SessionID: "cs_test_1", PaymentIntentID: "pi_1"}
	if err := f.svc.HandleCheckoutEvent(ctx, event); err != nil {
		t.Fatalf("HandleCheckoutEvent: %v", err)
	}
	p, _ := f.store.GetPayment(ctx, co.Payment.PaymentID)
	if p.Status != models.PaymentPendingVerification || p.TransactionID != "pi_1" {
		t.Fatalf("unexpected payment after webhook %+v", p)
	}
	if u, _ := f.store.GetUserByID(ctx, f.user.ID); u.Plan != models.PlanFree {
		t.Fatalf("card payment must still wait for approval, plan %s", u.Plan)
	}

	// Redelivery is a no-op.
	if err := f.svc.HandleCheckoutEvent(ctx, event); err != nil {
		t.Fatalf("redelivered event: %v", err)
	}
	if err := f.svc.HandleCheckoutEvent(ctx, &CheckoutEvent{Type: "charge.refunded"}); err != nil {
		t.Fatalf("unrelated event: %v", err)
	}
	if n := len(f.notes.got); n != 1 {
		t.Fatalf("expected one admin notification, got %d", n)
	}
}

func sign(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeParseWebhook(t *testing.T) {
	const secret = "whsec_test"
	client := NewStripeClient(config.StripeConfig{SecretKey: "sk_test_123", WebhookKey: secret})

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_9",
			"object": "checkout.session",
			"client_reference_id": "pay-9",
			"payment_intent": "pi_9"
		}}
	}`, stripe.APIVersion))
	ts := time.Now().Unix()

	event, err := client.ParseWebhook(payload, sign(secret, payload, ts))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if !event.Completed() || event.PaymentID != "pay-9" || event.SessionID != "cs_test_9" || event.PaymentIntentID != "pi_9" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := client.ParseWebhook(payload, sign("whsec_other", payload, ts)); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := client.ParseWebhook(payload, ""); err == nil {
		t.Fatalf("expected error for missing signature")
	}
}

func isValidation(err error) bool {
	var v *apperr.ValidationError
	return errors.As(err, &v)
}
