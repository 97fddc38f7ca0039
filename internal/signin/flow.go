package signin

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cinetaste/authkit/internal/config"
)

var (
	// ErrCancelled means the user aborted the external browsing surface
	// before the provider redirected back.
	ErrCancelled = errors.New("sign-in cancelled")
)

// ProviderError is an error reported by the identity provider through the
// callback query parameters. Terminal for that sign-in attempt.
type ProviderError struct {
	Reason string
}

func (e *ProviderError) Error() string {
	return "identity provider error: " + e.Reason
}

// Result is the outcome of launching the external flow. Either Token is
// populated (the redirect was observed and carried a token), or
// NeedsManualEntry is set and the caller must collect the token through
// manual capture.
type Result struct {
	Token            string
	NeedsManualEntry bool
}

// AuthorizeURL builds the provider authorization URL for a given callback.
// Launchers that host their own callback endpoint substitute its address.
type AuthorizeURL func(callbackURL string) string

// Launcher is the platform capability of opening a browsing surface and
// observing the provider redirect. Implementations that cannot observe the
// redirect return a needs-manual-entry result instead of failing.
type Launcher interface {
	Launch(ctx context.Context, authorize AuthorizeURL) (Result, error)
}

// Flow orchestrates the redirect-based identity-provider handshake.
type Flow struct {
	launcher        Launcher
	baseURL         string
	signInPath      string
	callbackURL     string
	defaultProvider string
	log             *zap.Logger
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   *config.Config
	Launcher Launcher
}

func New(p Params) *Flow {
	return &Flow{
		launcher:        p.Launcher,
		baseURL:         p.Config.API.BaseURL,
		signInPath:      p.Config.API.SignInPath,
		callbackURL:     p.Config.API.BaseURL + p.Config.API.CallbackPath,
		defaultProvider: p.Config.API.DefaultProvider,
		log:             p.Log,
	}
}

// AuthorizationURL returns the provider sign-in URL embedding callbackURL.
func (f *Flow) AuthorizationURL(provider, callbackURL string) string {
	return fmt.Sprintf("%s%s/%s?callbackUrl=%s",
		f.baseURL, f.signInPath, provider, url.QueryEscape(callbackURL))
}

// Begin launches the external flow for provider and waits for it to
// resolve. An empty provider falls back to the configured default.
func (f *Flow) Begin(ctx context.Context, provider string) (Result, error) {
	if provider == "" {
		provider = f.defaultProvider
	}

	attempt := uuid.NewString()
	log := f.log.With(zap.String("attempt", attempt), zap.String("provider", provider))

	authorize := func(callbackURL string) string {
		if callbackURL == "" {
			callbackURL = f.callbackURL
		}
		u := f.AuthorizationURL(provider, callbackURL)
		log.Info("opening authorization url", zap.String("url", u))
		return u
	}

	result, err := f.launcher.Launch(ctx, authorize)
	if err != nil {
		log.Warn("external sign-in failed", zap.Error(err))
		return Result{}, err
	}

	if result.NeedsManualEntry {
		log.Info("redirect not observable, falling back to manual token entry")
	} else {
		log.Info("redirect observed, token received")
	}
	return result, nil
}
