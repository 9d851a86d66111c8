package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payment tokens gate full comic generation: a verified payment yields one
// signed token, and the generation endpoint accepts the token instead of
// re-checking the gateway.

const tokenTTL = time.Hour

var ErrInvalidToken = errors.New("payment: invalid token")

type tokenClaims struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies short-lived payment tokens with HS256.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("payment: token secret is required")
	}
	return &TokenIssuer{secret: []byte(secret)}, nil
}

// Issue returns a token tied to a verified payment, valid for one hour.
func (t *TokenIssuer) Issue(paymentID, orderID string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		PaymentID: paymentID,
		OrderID:   orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("payment: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the payment and order ids it carries.
// Expired, malformed or wrongly signed tokens fail with ErrInvalidToken.
func (t *TokenIssuer) Verify(tokenString string) (paymentID, orderID string, err error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.PaymentID == "" || claims.OrderID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.PaymentID, claims.OrderID, nil
}
