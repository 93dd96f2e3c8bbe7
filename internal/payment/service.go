// Package payment runs the upgrade flow: UPI QR and manual submissions,
// Stripe card checkout, and administrator review.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tripplanner/config"
	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
	"tripplanner/internal/notify"
	"tripplanner/pkg/logger"
)

type Store interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	GetPaymentByStripeSession(ctx context.Context, sessionID string) (*models.Payment, error)
	AttachStripeSession(ctx context.Context, paymentID, sessionID string) error
	ListPayments(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, upd models.PaymentUpdate) (*models.Payment, error)
	CompletePayment(ctx context.Context, upd models.PaymentUpdate) (*models.Payment, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	SetUserPlan(ctx context.Context, id int64, plan models.Plan) error
	HasCompletedPayment(ctx context.Context, userID int64) (bool, error)
}

// ErrCardPaymentsDisabled is returned by StartCheckout and the webhook when
// no card gateway is configured.
var ErrCardPaymentsDisabled = errors.New("card payments are not configured")

// Checkout is a freshly created payment together with what the client needs
// to pay it.
type Checkout struct {
	Payment      *models.Payment `json:"payment"`
	UPIID        string          `json:"upi_id,omitempty"`
	PayeeName    string          `json:"payee_name,omitempty"`
	ContactEmail string          `json:"contact_email,omitempty"`
	QRData       string          `json:"qr_data,omitempty"`
	CheckoutURL  string          `json:"checkout_url,omitempty"`
}

type Service struct {
	store    Store
	notifier notify.Dispatcher
	gateway  CardGateway
	payee    UPIPayee
	currency string
	prices   map[models.Plan]int64
	now      func() time.Time
	logger   *logger.Logger
}

type Option func(*Service)

// WithCardGateway enables Stripe checkout.
func WithCardGateway(g CardGateway) Option {
	return func(s *Service) { s.gateway = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, notifier notify.Dispatcher, cfg config.PaymentConfig, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		payee: UPIPayee{
			VPA:          cfg.UPIID,
			Name:         cfg.PayeeName,
			ContactEmail: cfg.ContactEmail,
		},
		currency: currency,
		prices: map[models.Plan]int64{
			models.PlanPro:       cfg.ProAmount,
			models.PlanPerExport: cfg.PerExportAmount,
		},
		now:    time.Now,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CardPaymentsEnabled reports whether StartCheckout is available.
func (s *Service) CardPaymentsEnabled() bool {
	return s.gateway != nil
}

// Price returns the amount charged for plan.
func (s *Service) Price(plan models.Plan) (int64, error) {
	amount, ok := s.prices[plan]
	if !ok || amount <= 0 {
		return 0, apperr.Invalid("plan", "plan %q cannot be purchased", plan)
	}
	return amount, nil
}

// Initiate records a new payment attempt and returns the UPI details to pay it.
func (s *Service) Initiate(ctx context.Context, user *models.User, plan models.Plan) (*Checkout, error) {
	p, err := s.create(ctx, user, plan, models.PaymentInitiated)
	if err != nil {
		return nil, err
	}
	return &Checkout{
		Payment:      p,
		UPIID:        s.payee.VPA,
		PayeeName:    s.payee.Name,
		ContactEmail: s.payee.ContactEmail,
	}, nil
}

// GenerateQR records a pending payment and returns the UPI URI to encode
// as a QR code.
func (s *Service) GenerateQR(ctx context.Context, user *models.User, plan models.Plan) (*Checkout, error) {
	p, err := s.create(ctx, user, plan, models.PaymentPending)
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("TripPlanner %s %s", p.Plan, p.PaymentID)
	return &Checkout{
		Payment:      p,
		UPIID:        s.payee.VPA,
		PayeeName:    s.payee.Name,
		ContactEmail: s.payee.ContactEmail,
		QRData:       UPIURI(s.payee, p.Amount, p.Currency, note),
	}, nil
}

// StartCheckout records a pending payment and opens a Stripe Checkout
// session for it.
func (s *Service) StartCheckout(ctx context.Context, user *models.User, plan models.Plan) (*Checkout, error) {
	if s.gateway == nil {
		return nil, ErrCardPaymentsDisabled
	}
	p, err := s.create(ctx, user, plan, models.PaymentPending)
	if err != nil {
		return nil, err
	}

	sessionID, url, err := s.gateway.CreateCheckoutSession(p, user.Email)
	if err != nil {
		s.logger.Errorw("Failed to create checkout session", "payment_id", p.PaymentID, "error", err)
		return nil, err
	}
	if err := s.store.AttachStripeSession(ctx, p.PaymentID, sessionID); err != nil {
		return nil, err
	}
	p.StripeSessionID = sessionID

	s.logger.Infow("Checkout session created",
		"payment_id", p.PaymentID,
		"user_id", user.ID,
		"session_id", sessionID,
	)
	return &Checkout{Payment: p, CheckoutURL: url}, nil
}

func (s *Service) create(ctx context.Context, user *models.User, plan models.Plan, status models.PaymentStatus) (*models.Payment, error) {
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	if plan == "" {
		plan = models.PlanPro
	}
	amount, err := s.Price(plan)
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		UserID:    user.ID,
		PaymentID: uuid.NewString(),
		Plan:      plan,
		Amount:    amount,
		Currency:  s.currency,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Infow("Payment created",
		"payment_id", p.PaymentID,
		"user_id", user.ID,
		"plan", plan,
		"status", status,
	)
	return p, nil
}

// SubmitTransaction attaches the user's UPI transaction id and queues the
// payment for review.
func (s *Service) SubmitTransaction(ctx context.Context, user *models.User, paymentID, transactionID string) (*models.Payment, error) {
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	paymentID = strings.TrimSpace(paymentID)
	transactionID = strings.TrimSpace(transactionID)
	if paymentID == "" {
		return nil, apperr.Missing("payment_id")
	}
	if transactionID == "" {
		return nil, apperr.Missing("transaction_id")
	}
	if utf8.RuneCountInString(transactionID) > models.MaxReferenceLen {
		return nil, apperr.TooLong("transaction_id", models.MaxReferenceLen)
	}

	p, err := s.store.UpdatePaymentStatus(ctx, models.PaymentUpdate{
		PaymentID:     paymentID,
		UserID:        user.ID,
		From:          []models.PaymentStatus{models.PaymentInitiated, models.PaymentPending},
		To:            models.PaymentPendingVerification,
		TransactionID: transactionID,
		At:            s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.notifyAdmin(ctx, user, p, "")
	return p, nil
}

// SubmitManual queues a payment for review when the user only has the UPI
// reference shown by their banking app.
func (s *Service) SubmitManual(ctx context.Context, user *models.User, paymentID, upiReference, amount string) (*models.Payment, error) {
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	paymentID = strings.TrimSpace(paymentID)
	upiReference = strings.TrimSpace(upiReference)
	if paymentID == "" {
		return nil, apperr.Missing("payment_id")
	}
	if upiReference == "" {
		return nil, apperr.Missing("upi_reference")
	}
	if utf8.RuneCountInString(upiReference) > models.MaxReferenceLen {
		return nil, apperr.TooLong("upi_reference", models.MaxReferenceLen)
	}

	p, err := s.store.UpdatePaymentStatus(ctx, models.PaymentUpdate{
		PaymentID:    paymentID,
		UserID:       user.ID,
		From:         []models.PaymentStatus{models.PaymentInitiated, models.PaymentPending},
		To:           models.PaymentManualVerificationPending,
		UPIReference: upiReference,
		At:           s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.notifyAdmin(ctx, user, p, strings.TrimSpace(amount))
	return p, nil
}

// HandleStripeWebhook verifies a raw webhook delivery and applies it.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrCardPaymentsDisabled
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warnw("Rejected Stripe webhook", "error", err)
		return apperr.Invalid("signature", "invalid webhook payload")
	}
	return s.HandleCheckoutEvent(ctx, event)
}

// ContactEmail is where users reach support about a payment.
func (s *Service) ContactEmail() string {
	return s.payee.ContactEmail
}

// HandleCheckoutEvent applies a verified Stripe event. A completed checkout
// moves its payment to pending_verification; approval stays manual.
func (s *Service) HandleCheckoutEvent(ctx context.Context, event *CheckoutEvent) error {
	if !event.Completed() {
		s.logger.Debugw("Ignoring Stripe event", "type", event.Type)
		return nil
	}

	var (
		p   *models.Payment
		err error
	)
	switch {
	case event.PaymentID != "":
		p, err = s.store.GetPayment(ctx, event.PaymentID)
	case event.SessionID != "":
		p, err = s.store.GetPaymentByStripeSession(ctx, event.SessionID)
	default:
		return apperr.Missing("client_reference_id")
	}
	if err != nil {
		return err
	}

	reference := event.PaymentIntentID
	if reference == "" {
		reference = event.SessionID
	}
	updated, err := s.store.UpdatePaymentStatus(ctx, models.PaymentUpdate{
		PaymentID:     p.PaymentID,
		From:          []models.PaymentStatus{models.PaymentInitiated, models.PaymentPending},
		To:            models.PaymentPendingVerification,
		TransactionID: reference,
		At:            s.now().UTC(),
	})
	if errors.Is(err, apperr.ErrInvalidTransition) {
		// Stripe retries deliveries; a payment already past pending is done.
		s.logger.Infow("Duplicate checkout event", "payment_id", p.PaymentID, "status", p.Status)
		return nil
	}
	if err != nil {
		return err
	}

	owner, err := s.store.GetUserByID(ctx, updated.UserID)
	if err != nil {
		s.logger.Warnw("Checkout owner lookup failed", "payment_id", updated.PaymentID, "error", err)
		owner = &models.User{ID: updated.UserID}
	}
	s.notifyAdmin(ctx, owner, updated, "")
	return nil
}

// Approve completes a payment under review and upgrades its owner to pro.
func (s *Service) Approve(ctx context.Context, admin *models.User, paymentID string) (*models.Payment, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}

	p, err := s.store.CompletePayment(ctx, models.PaymentUpdate{
		PaymentID: paymentID,
		From:      []models.PaymentStatus{models.PaymentPendingVerification, models.PaymentManualVerificationPending},
		At:        s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Payment approved",
		"payment_id", p.PaymentID,
		"user_id", p.UserID,
		"admin_id", admin.ID,
	)
	s.notifyOwner(ctx, p, notify.TemplatePaymentApproved, map[string]string{
		"payment_id": p.PaymentID,
		"plan":       string(models.PlanPro),
	})
	return p, nil
}

// Reject closes any non-terminal payment. The owner's plan is untouched.
func (s *Service) Reject(ctx context.Context, admin *models.User, paymentID, reason string) (*models.Payment, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	reason = strings.TrimSpace(reason)

	p, err := s.store.UpdatePaymentStatus(ctx, models.PaymentUpdate{
		PaymentID: paymentID,
		From: []models.PaymentStatus{
			models.PaymentInitiated,
			models.PaymentPending,
			models.PaymentPendingVerification,
			models.PaymentManualVerificationPending,
		},
		To:              models.PaymentRejected,
		RejectionReason: reason,
		At:              s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Payment rejected",
		"payment_id", p.PaymentID,
		"user_id", p.UserID,
		"admin_id", admin.ID,
		"reason", reason,
	)
	s.notifyOwner(ctx, p, notify.TemplatePaymentRejected, map[string]string{
		"payment_id": p.PaymentID,
		"reason":     reason,
	})
	return p, nil
}

// List returns payments for the admin view, newest first. An empty status
// lists everything.
func (s *Service) List(ctx context.Context, admin *models.User, status models.PaymentStatus) ([]*models.Payment, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", "unknown payment status %q", status)
	}
	return s.store.ListPayments(ctx, status)
}

// SetPlan lets an administrator change a user's plan. Granting pro requires
// a completed payment on record.
func (s *Service) SetPlan(ctx context.Context, admin *models.User, userID int64, plan models.Plan) (*models.User, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	if !plan.Valid() {
		return nil, apperr.Invalid("plan", "unknown plan %q", plan)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == models.PlanPro {
		paid, err := s.store.HasCompletedPayment(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, apperr.Invalid("plan", "user %d has no completed payment", userID)
		}
	}

	if err := s.store.SetUserPlan(ctx, userID, plan); err != nil {
		return nil, err
	}
	user.Plan = plan

	s.logger.Infow("User plan changed", "user_id", userID, "plan", plan, "admin_id", admin.ID)
	return user, nil
}

func (s *Service) notifyAdmin(ctx context.Context, user *models.User, p *models.Payment, declaredAmount string) {
	amount := strconv.FormatInt(p.Amount, 10)
	if declaredAmount != "" && declaredAmount != amount {
		amount = fmt.Sprintf("%s, declared %s", amount, declaredAmount)
	}
	s.dispatch(ctx, notify.Message{
		To:       notify.AdminRecipient,
		Template: notify.TemplatePaymentSubmitted,
		Params: map[string]string{
			"email":          user.Email,
			"payment_id":     p.PaymentID,
			"plan":           string(p.Plan),
			"amount":         amount,
			"currency":       p.Currency,
			"status":         string(p.Status),
			"transaction_id": p.TransactionID,
			"upi_reference":  p.UPIReference,
		},
	})
}

func (s *Service) notifyOwner(ctx context.Context, p *models.Payment, template string, params map[string]string) {
	owner, err := s.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		s.logger.Warnw("Payment owner lookup failed", "payment_id", p.PaymentID, "error", err)
		return
	}
	s.dispatch(ctx, notify.Message{To: owner.Email, Template: template, Params: params})
}

func (s *Service) dispatch(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, msg); err != nil {
		s.logger.Errorw("Failed to send notification",
			"to", msg.To,
			"template", msg.Template,
			"error", err,
		)
	}
}
