package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	ProviderNanoBanana = "nanobanana"
	ProviderGroq       = "groq"
	ProviderRazorpay   = "razorpay"
)

// SQLExecutor is the subset of pgxpool.Pool the store needs.
type SQLExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectTokenSQL = `SELECT token FROM integration_tokens WHERE provider = $1`
	upsertTokenSQL = `
INSERT INTO integration_tokens (provider, token, properties)
VALUES ($1, $2, $3)
ON CONFLICT (provider)
DO UPDATE SET token = EXCLUDED.token, properties = EXCLUDED.properties`
)

type Store struct {
	sql SQLExecutor
}

func NewStore(sql SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) NanoBananaAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderNanoBanana)
}

func (s *Store) GroqAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGroq)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, selectTokenSQL, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetNanoBananaAPIKey(ctx context.Context, key string) error {
	return s.SetToken(ctx, ProviderNanoBanana, key)
}

func (s *Store) SetGroqAPIKey(ctx context.Context, key string) error {
	return s.SetToken(ctx, ProviderGroq, key)
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return errors.New("provider is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	return s.upsert(ctx, provider, token, nil)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, upsertTokenSQL, provider, token, raw)
	return err
}
