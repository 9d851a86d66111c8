package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestCreateOrderConvertsAmountToPaise(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	gateway, err := NewGateway(GatewayOptions{
		KeyID:      "rzp_test_key",
		KeySecret:  "secret",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	transport.setJSONResponse("/v1/orders", map[string]any{
		"id":       "order_123",
		"amount":   100,
		"currency": "INR",
		"status":   "created",
	})

	order, err := gateway.CreateOrder(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_123" {
		t.Fatalf("order id = %q", order.ID)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if amount := payload["amount"].(float64); amount != 100 {
		t.Fatalf("amount = %v, want 100 paise", amount)
	}
	if currency := payload["currency"]; currency != "INR" {
		t.Fatalf("currency = %v, want INR default", currency)
	}
	if receipt := payload["receipt"].(string); !strings.HasPrefix(receipt, "receipt_") {
		t.Fatalf("receipt = %q", receipt)
	}
	user, pass, ok := transport.lastBasicAuth()
	if !ok || user != "rzp_test_key" || pass != "secret" {
		t.Fatalf("basic auth = %q/%q", user, pass)
	}
}

func TestCreateOrderRejectsMissingID(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	gateway, err := NewGateway(GatewayOptions{
		KeyID:      "k",
		KeySecret:  "s",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	transport.setJSONResponse("/v1/orders", map[string]any{"status": "created"})

	if _, err := gateway.CreateOrder(context.Background(), 1, "INR"); err == nil {
		t.Fatalf("expected error for order response without id")
	}
}

func TestVerifySignature(t *testing.T) {
	gateway, err := NewGateway(GatewayOptions{KeyID: "k", KeySecret: "topsecret"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("order_1|pay_1"))
	signature := hex.EncodeToString(mac.Sum(nil))

	if !gateway.VerifySignature("order_1", "pay_1", signature) {
		t.Fatalf("valid signature rejected")
	}
	if gateway.VerifySignature("order_1", "pay_1", "deadbeef") {
		t.Fatalf("invalid signature accepted")
	}
	if gateway.VerifySignature("order_2", "pay_1", signature) {
		t.Fatalf("signature for a different order accepted")
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("jwt-secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	token, err := issuer.Issue("pay_1", "order_1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	paymentID, orderID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if paymentID != "pay_1" || orderID != "order_1" {
		t.Fatalf("claims = %q/%q", paymentID, orderID)
	}
}

func TestTokenVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-a")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("pay_1", "order_1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewTokenIssuer("secret-b")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if _, _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenVerifyRejectsGarbage(t *testing.T) {
	issuer, err := NewTokenIssuer("jwt-secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if _, _, err := issuer.Verify("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
	lastReq   *http.Request
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) lastBasicAuth() (string, string, bool) {
	if c.lastReq == nil {
		return "", "", false
	}
	return c.lastReq.BasicAuth()
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
