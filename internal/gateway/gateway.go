package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cinetaste/authkit/internal/config"
	"github.com/cinetaste/authkit/internal/model"
)

var (
	// ErrInvalidToken means the backend explicitly rejected the token or
	// returned a session payload with no user. Terminal for that token.
	ErrInvalidToken = errors.New("token rejected by session endpoint")
)

// RejectionError carries the HTTP status and body of a non-2xx exchange
// response for diagnostics.
type RejectionError struct {
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("session exchange rejected: status %d: %s", e.Status, e.Body)
}

func (e *RejectionError) Unwrap() error {
	return ErrInvalidToken
}

// IsRetryable reports whether err was a transport-level failure rather
// than an explicit rejection by the backend.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidToken)
}

// Gateway exchanges a raw bearer token for a fresh session record.
type Gateway struct {
	client   *http.Client
	endpoint string
	log      *zap.Logger
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config *config.Config
}

func New(p Params) *Gateway {
	return &Gateway{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: p.Config.API.BaseURL + p.Config.API.SessionPath,
		log:      p.Log,
	}
}

// NewWithClient is used by tests and by hosts that need custom transport.
func NewWithClient(client *http.Client, endpoint string, log *zap.Logger) *Gateway {
	return &Gateway{client: client, endpoint: endpoint, log: log}
}

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangePayload struct {
	User    model.User `json:"user"`
	Expires time.Time  `json:"expires"`
	Token   string     `json:"token"`
}

// Exchange posts the raw token to the session endpoint and returns the
// issued session. The expiry always comes from the response payload, never
// from a local computation. Transport failures are retryable; non-2xx
// responses and payloads without a user unwrap to ErrInvalidToken.
func (g *Gateway) Exchange(ctx context.Context, rawToken string) (*model.Session, error) {
	body, err := json.Marshal(exchangeRequest{Token: rawToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.log.Error("session exchange rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", errText),
		)
		return nil, &RejectionError{Status: resp.StatusCode, Body: string(errText)}
	}

	var payload exchangePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("session payload malformed: %w", err)
	}

	// A 2xx response without a user means the backend did not recognize
	// the token; treat it the same as an explicit rejection.
	if payload.User.ID == "" {
		return nil, fmt.Errorf("session payload missing user: %w", ErrInvalidToken)
	}

	session := &model.Session{
		User:      payload.User,
		ExpiresAt: payload.Expires,
		Token:     payload.Token,
	}
	if session.Token == "" {
		session.Token = rawToken
	}

	return session, nil
}
