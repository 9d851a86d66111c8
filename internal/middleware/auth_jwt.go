package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/domain"
)

type userKey string

const currentUserKey userKey = "current_user"

// UserClaims are the identity claims carried by an access token.
type UserClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignUserToken mints an HS256 access token for the given user. Used by the
// account tooling and by tests.
func SignUserToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyUserToken validates a token and returns its claims.
func VerifyUserToken(secret, tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}

// Authenticator verifies bearer tokens and resolves the caller to a local
// user record, creating it on first sight.
type Authenticator struct {
	secret string
	users  domain.UserRepository
	logger zerolog.Logger
}

func NewAuthenticator(secret string, users domain.UserRepository, logger *zerolog.Logger) *Authenticator {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Authenticator{secret: secret, users: users, logger: log}
}

// Require rejects unauthenticated requests and attaches the resolved user to
// the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "invalid authorization", http.StatusUnauthorized)
			return
		}
		claims, err := VerifyUserToken(a.secret, parts[1])
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		user, err := a.users.Upsert(r.Context(), &domain.User{
			ID:    claims.Subject,
			Email: claims.Email,
		})
		if err != nil {
			a.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("user upsert failed")
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user, or nil outside Require.
func UserFromContext(ctx context.Context) *domain.User {
	if v, ok := ctx.Value(currentUserKey).(*domain.User); ok {
		return v
	}
	return nil
}

func ContextWithUser(ctx context.Context, user *domain.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, currentUserKey, user)
}
