package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(handler http.HandlerFunc) (*Gateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	gw := NewWithClient(server.Client(), server.URL+"/api/auth/session-mobile", zap.NewNop())
	return gw, server
}

func Test_exchangeSuccess(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var gotBody map[string]string
	gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/api/auth/session-mobile", r.URL.Path)
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		require.NoError(json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"user": {"id": "42", "name": "Ada", "email": "ada@x.com"},
			"expires": "2030-01-01T00:00:00Z",
			"token": "abc123"
		}`))
	})
	defer server.Close()

	session, err := gw.Exchange(context.Background(), "abc123")
	require.NoError(err)

	assert.Equal("abc123", gotBody["token"])
	assert.Equal("42", session.User.ID)
	assert.Equal("Ada", session.User.Name)
	assert.Equal("ada@x.com", session.User.Email)
	assert.Equal("abc123", session.Token)
	assert.Equal(2030, session.ExpiresAt.Year())
}

func Test_exchangeKeepsRawTokenWhenPayloadOmitsIt(t *testing.T) {
	gw, server := newTestGateway(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"user": {"id": "42"}, "expires": "2030-01-01T00:00:00Z"}`))
	})
	defer server.Close()

	session, err := gw.Exchange(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "raw-token", session.Token)
}

func Test_exchangeRejected(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	gw, server := newTestGateway(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})
	defer server.Close()

	_, err := gw.Exchange(context.Background(), "expired-xyz")
	require.Error(err)
	assert.ErrorIs(err, ErrInvalidToken)
	assert.False(IsRetryable(err))

	var rejection *RejectionError
	require.ErrorAs(err, &rejection)
	assert.Equal(http.StatusUnauthorized, rejection.Status)
}

func Test_exchangeMissingUser(t *testing.T) {
	gw, server := newTestGateway(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"expires": "2030-01-01T00:00:00Z", "token": "abc123"}`))
	})
	defer server.Close()

	_, err := gw.Exchange(context.Background(), "abc123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func Test_exchangeNetworkFailureIsRetryable(t *testing.T) {
	gw, server := newTestGateway(func(w http.ResponseWriter, _ *http.Request) {})
	server.Close() // connection refused from here on

	_, err := gw.Exchange(context.Background(), "abc123")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NotErrorIs(t, err, ErrInvalidToken)
}
