package models

import "time"

// MaxReferenceLen is the width of the transaction_id and upi_reference columns.
const MaxReferenceLen = 100

type PaymentStatus string

const (
	PaymentInitiated                 PaymentStatus = "initiated"                   // created, no QR shown yet
	PaymentPending                   PaymentStatus = "pending"                     // QR payload or checkout handed to the user
	PaymentPendingVerification       PaymentStatus = "pending_verification"        // user submitted a transaction id
	PaymentManualVerificationPending PaymentStatus = "manual_verification_pending" // user submitted a UPI reference only
	PaymentCompleted                 PaymentStatus = "completed"
	PaymentRejected                  PaymentStatus = "rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentInitiated, PaymentPending, PaymentPendingVerification,
		PaymentManualVerificationPending, PaymentCompleted, PaymentRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentRejected
}

// AwaitingSubmission reports whether the user may still submit a reference.
func (s PaymentStatus) AwaitingSubmission() bool {
	return s == PaymentInitiated || s == PaymentPending
}

// AwaitingReview reports whether an administrator may approve.
func (s PaymentStatus) AwaitingReview() bool {
	return s == PaymentPendingVerification || s == PaymentManualVerificationPending
}

// Payment is one upgrade attempt. Amount is in whole currency units (rupees).
type Payment struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	PaymentID       string        `json:"payment_id"`
	Plan            Plan          `json:"plan"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	Status          PaymentStatus `json:"status"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	UPIReference    string        `json:"upi_reference,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	StripeSessionID string        `json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// PaymentUpdate describes a conditional status change: it applies only
// while the stored status is one of From.
type PaymentUpdate struct {
	PaymentID       string
	UserID          int64 // zero matches any owner
	From            []PaymentStatus
	To              PaymentStatus
	TransactionID   string
	UPIReference    string
	RejectionReason string
	At              time.Time
}

// Allows reports whether the update may be applied to a payment in status s.
func (u PaymentUpdate) Allows(s PaymentStatus) bool {
	for _, from := range u.From {
		if from == s {
			return true
		}
	}
	return false
}
