package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/itinerary"
	"tripplanner/internal/models"
	"tripplanner/internal/payment"
)

const maxWebhookBody = 64 << 10

type planBody struct {
	Plan models.Plan `json:"plan"`
}

// bindPlan accepts an empty body, which selects the pro plan.
func (h *handlers) bindPlan(c *gin.Context) (models.Plan, bool) {
	var body planBody
	if c.Request.ContentLength != 0 && !h.bind(c, &body) {
		return "", false
	}
	if body.Plan == "" {
		return models.PlanPro, true
	}
	return body.Plan, true
}

func checkoutView(co *payment.Checkout) gin.H {
	out := gin.H{
		"success":    true,
		"payment_id": co.Payment.PaymentID,
		"amount":     co.Payment.Amount,
		"currency":   co.Payment.Currency,
		"plan":       co.Payment.Plan,
		"status":     co.Payment.Status,
	}
	if co.UPIID != "" {
		out["upi_id"] = co.UPIID
		out["payee_name"] = co.PayeeName
	}
	if co.ContactEmail != "" {
		out["contact_email"] = co.ContactEmail
	}
	if co.QRData != "" {
		out["qr_data"] = co.QRData
	}
	if co.CheckoutURL != "" {
		out["checkout_url"] = co.CheckoutURL
	}
	return out
}

func (h *handlers) initiatePayment(c *gin.Context) {
	plan, ok := h.bindPlan(c)
	if !ok {
		return
	}
	co, err := h.Payments.Initiate(c.Request.Context(), currentUser(c), plan)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, checkoutView(co))
}

func (h *handlers) generateQR(c *gin.Context) {
	plan, ok := h.bindPlan(c)
	if !ok {
		return
	}
	co, err := h.Payments.GenerateQR(c.Request.Context(), currentUser(c), plan)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, checkoutView(co))
}

func (h *handlers) startCheckout(c *gin.Context) {
	plan, ok := h.bindPlan(c)
	if !ok {
		return
	}
	co, err := h.Payments.StartCheckout(c.Request.Context(), currentUser(c), plan)
	if errors.Is(err, payment.ErrCardPaymentsDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, checkoutView(co))
}

func (h *handlers) verifyPayment(c *gin.Context) {
	var body struct {
		PaymentID     string `json:"payment_id" binding:"required"`
		TransactionID string `json:"transaction_id" binding:"required"`
	}
	if !h.bind(c, &body) {
		return
	}

	p, err := h.Payments.SubmitTransaction(c.Request.Context(), currentUser(c), body.PaymentID, body.TransactionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment submitted. Your account will be upgraded once an administrator confirms it.",
		"status":  p.Status,
		"plan":    currentUser(c).Plan,
	})
}

func (h *handlers) manualVerification(c *gin.Context) {
	var body struct {
		PaymentID    string               `json:"payment_id" binding:"required"`
		UPIReference string               `json:"upi_reference"`
		UPIID        string               `json:"upi_id"`
		Amount       itinerary.FlexNumber `json:"amount"`
	}
	if !h.bind(c, &body) {
		return
	}
	reference := body.UPIReference
	if reference == "" {
		reference = body.UPIID
	}

	p, err := h.Payments.SubmitManual(c.Request.Context(), currentUser(c), body.PaymentID, reference, string(body.Amount))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Manual verification request received. We will verify your payment and upgrade your account within 24 hours.",
		"status":        p.Status,
		"contact_email": h.Payments.ContactEmail(),
	})
}

func (h *handlers) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read body"})
		return
	}

	err = h.Payments.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrCardPaymentsDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
