package signin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cinetaste/authkit/internal/config"
)

type fakeLauncher struct {
	result  Result
	err     error
	lastURL string
}

func (f *fakeLauncher) Launch(_ context.Context, authorize AuthorizeURL) (Result, error) {
	f.lastURL = authorize("")
	return f.result, f.err
}

func newTestFlow(t *testing.T, l Launcher) *Flow {
	t.Helper()
	cfg, err := config.New()
	require.NoError(t, err)
	return New(Params{Log: zap.NewNop(), Config: cfg, Launcher: l})
}

func Test_authorizationURL(t *testing.T) {
	f := newTestFlow(t, &fakeLauncher{})

	got := f.AuthorizationURL("google", "https://cinetaste-254.vercel.app/auth/mobile-callback")
	assert.Equal(t,
		"https://cinetaste-254.vercel.app/api/auth/signin/google"+
			"?callbackUrl=https%3A%2F%2Fcinetaste-254.vercel.app%2Fauth%2Fmobile-callback",
		got)
}

func Test_beginUsesDefaultProvider(t *testing.T) {
	l := &fakeLauncher{result: Result{Token: "abc123"}}
	f := newTestFlow(t, l)

	result, err := f.Begin(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Token)
	assert.Contains(t, l.lastURL, "/api/auth/signin/google?")
}

func Test_beginReportsManualFallback(t *testing.T) {
	f := newTestFlow(t, &fakeLauncher{result: Result{NeedsManualEntry: true}})

	result, err := f.Begin(context.Background(), "github")
	require.NoError(t, err)
	assert.True(t, result.NeedsManualEntry)
}

func Test_beginPropagatesCancellation(t *testing.T) {
	f := newTestFlow(t, &fakeLauncher{err: ErrCancelled})

	_, err := f.Begin(context.Background(), "google")
	assert.ErrorIs(t, err, ErrCancelled)
}
