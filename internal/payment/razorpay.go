package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Order is a Razorpay order as returned by the orders API. Amount is in the
// currency's smallest unit (paise for INR).
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentDetails is the subset of a fetched payment the service uses.
type PaymentDetails struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Contact  string `json:"contact"`
}

type GatewayOptions struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Gateway talks to the Razorpay REST API with basic auth and verifies
// checkout signatures locally.
type Gateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
	logger    zerolog.Logger
}

func NewGateway(opts GatewayOptions) (*Gateway, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if strings.TrimSpace(opts.KeyID) == "" || strings.TrimSpace(opts.KeySecret) == "" {
		logger.Warn().Msg("razorpay credentials missing")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{
		keyID:     strings.TrimSpace(opts.KeyID),
		keySecret: strings.TrimSpace(opts.KeySecret),
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
	}, nil
}

// CreateOrder opens an order for the given amount in whole currency units.
func (g *Gateway) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	if currency == "" {
		currency = "INR"
	}
	payload := map[string]any{
		"amount":   amount * 100,
		"currency": currency,
		"receipt":  fmt.Sprintf("receipt_%d", time.Now().UnixMilli()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payment: encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: create order: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payment: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment: create order status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("payment: decode order: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("payment: order response missing id")
	}
	g.logger.Info().Str("order_id", order.ID).Msg("razorpay order created")
	return &order, nil
}

// GetPayment fetches a captured payment, used to read the payer contact.
func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("payment: build request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: fetch payment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment: fetch payment status %d", resp.StatusCode)
	}
	var details PaymentDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("payment: decode payment: %w", err)
	}
	return &details, nil
}

// VerifySignature checks the checkout callback signature: HMAC-SHA256 of
// "orderId|paymentId" under the key secret.
func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	valid := subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
	if !valid {
		g.logger.Warn().Str("order_id", orderID).Str("payment_id", paymentID).Msg("invalid payment signature")
	}
	return valid
}
