package handlers

import (
	"net/http"

	"github.com/feelkraft/comic-api/internal/domain"
)

type orderRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency"`
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// PaymentOrder creates a gateway order for client-side checkout.
func (a *App) PaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !a.decode(w, r, &req) {
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	order, err := a.Gateway.CreateOrder(r.Context(), req.Amount, currency)
	if err != nil {
		a.Logger.Error().Err(err).Msg("order create failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "failed to create order")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"orderId":  order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"keyId":    a.RazorpayKeyID,
	})
}

// PaymentVerify checks the checkout signature, records the payment, and
// issues the short-lived token that unlocks full-comic generation.
func (a *App) PaymentVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !a.decode(w, r, &req) {
		return
	}

	if !a.Gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		a.error(w, http.StatusBadRequest, "invalid_signature", "payment signature mismatch")
		return
	}

	record := &domain.Payment{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
		Status:    "verified",
	}
	if details, err := a.Gateway.GetPayment(r.Context(), req.PaymentID); err != nil {
		a.Logger.Warn().Err(err).Str("payment_id", req.PaymentID).Msg("payment detail fetch failed")
	} else {
		record.Amount = details.Amount
		record.Currency = details.Currency
		record.Status = details.Status
	}

	if err := a.Payments.Create(r.Context(), record); err != nil {
		a.Logger.Error().Err(err).Str("payment_id", req.PaymentID).Msg("payment persist failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record payment")
		return
	}

	token, err := a.Tokens.Issue(req.PaymentID, req.OrderID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("payment token issue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to issue payment token")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"success": true, "paymentToken": token})
}
