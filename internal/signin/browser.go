package signin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// callbackPage is shown in the browser once the redirect lands.
const callbackPage = `<!doctype html>
<html><body><p>Completing sign in&hellip; you can close this window.</p></body></html>`

// BrowserLauncher opens the system browser and hosts a loopback callback
// endpoint to observe the provider redirect. If the browser cannot be
// opened at all the flow degrades to manual token entry rather than
// failing outright.
type BrowserLauncher struct {
	log *zap.Logger

	// openURL is swappable for tests; defaults to the platform opener.
	openURL func(url string) error
}

func NewBrowserLauncher(log *zap.Logger) *BrowserLauncher {
	return &BrowserLauncher{log: log, openURL: openInBrowser}
}

type callbackResult struct {
	token string
	err   error
}

func (b *BrowserLauncher) Launch(ctx context.Context, authorize AuthorizeURL) (Result, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Result{}, fmt.Errorf("failed to open loopback listener: %w", err)
	}

	results := make(chan callbackResult, 1)

	root := chi.NewRouter()
	root.Get("/auth-callback", func(w http.ResponseWriter, r *http.Request) {
		token, err := parseCallback(r.URL)
		if errors.Is(err, errNotCallback) {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackPage)

		select {
		case results <- callbackResult{token: token, err: err}:
		default:
		}
	})

	server := &http.Server{Handler: root}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("callback server error", zap.Error(err))
		}
	}()
	defer server.Close()

	callbackURL := (&url.URL{
		Scheme: "http",
		Host:   ln.Addr().String(),
		Path:   "/auth-callback",
	}).String()

	if err := b.openURL(authorize(callbackURL)); err != nil {
		// No browser available: leave token transfer to manual capture.
		b.log.Warn("could not open browser", zap.Error(err))
		return Result{NeedsManualEntry: true}, nil
	}

	select {
	case <-ctx.Done():
		return Result{}, ErrCancelled
	case r := <-results:
		if r.err != nil {
			return Result{}, r.err
		}
		return Result{Token: r.token}, nil
	}
}

func openInBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
