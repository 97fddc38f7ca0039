package signin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// redirectingOpener stands in for the system browser: it immediately
// follows the provider round-trip by hitting the loopback callback with
// the given query string.
func redirectingOpener(t *testing.T, query string) func(string) error {
	t.Helper()
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)

		callback, err := url.QueryUnescape(u.Query().Get("callbackUrl"))
		require.NoError(t, err)

		go func() {
			resp, err := http.Get(callback + "?" + query)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func Test_browserLauncherObservesRedirect(t *testing.T) {
	b := NewBrowserLauncher(zap.NewNop())
	b.openURL = redirectingOpener(t, "success=true&token=abc123")

	result, err := b.Launch(context.Background(), func(callbackURL string) string {
		return "https://cinetaste-254.vercel.app/api/auth/signin/google?callbackUrl=" +
			url.QueryEscape(callbackURL)
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Token)
	assert.False(t, result.NeedsManualEntry)
}

func Test_browserLauncherProviderError(t *testing.T) {
	b := NewBrowserLauncher(zap.NewNop())
	b.openURL = redirectingOpener(t, "error=access_denied")

	_, err := b.Launch(context.Background(), func(callbackURL string) string {
		return "https://example.com/signin?callbackUrl=" + url.QueryEscape(callbackURL)
	})

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "access_denied", perr.Reason)
}

func Test_browserLauncherUnopenableFallsBackToManual(t *testing.T) {
	b := NewBrowserLauncher(zap.NewNop())
	b.openURL = func(string) error { return errors.New("no browser") }

	result, err := b.Launch(context.Background(), func(callbackURL string) string {
		return "https://example.com/signin?callbackUrl=" + url.QueryEscape(callbackURL)
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsManualEntry)
}

func Test_browserLauncherCancelled(t *testing.T) {
	b := NewBrowserLauncher(zap.NewNop())
	b.openURL = func(string) error { return nil } // browser opens, user never finishes

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Launch(ctx, func(callbackURL string) string {
		return "https://example.com/signin?callbackUrl=" + url.QueryEscape(callbackURL)
	})
	assert.ErrorIs(t, err, ErrCancelled)
}
