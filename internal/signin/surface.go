package signin

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"go.uber.org/zap"
)

// EmbeddedSurface is the embedded-web-view flavor of Launcher. The host UI
// owns the actual browsing widget; it forwards every navigation event to
// HandleNavigation and calls Close when the user dismisses the surface.
// Hosts whose widget cannot report navigations call RequireManual instead,
// which resolves the launch as needs-manual-entry while the surface stays
// open showing the token for the user to copy.
type EmbeddedSurface struct {
	log  *zap.Logger
	open func(url string)

	mu      sync.Mutex
	results chan callbackResult
	manual  chan struct{}
	closed  chan struct{}
}

// NewEmbeddedSurface builds a surface whose open callback is invoked with
// the authorization URL when a launch starts.
func NewEmbeddedSurface(log *zap.Logger, open func(url string)) *EmbeddedSurface {
	if open == nil {
		open = func(string) {}
	}
	return &EmbeddedSurface{log: log, open: open}
}

func (s *EmbeddedSurface) Launch(ctx context.Context, authorize AuthorizeURL) (Result, error) {
	s.mu.Lock()
	s.results = make(chan callbackResult, 1)
	s.manual = make(chan struct{})
	s.closed = make(chan struct{})
	results, manual, closed := s.results, s.manual, s.closed
	s.mu.Unlock()

	// Empty callback: the surface observes the app-default callback URL.
	s.open(authorize(""))

	select {
	case <-ctx.Done():
		return Result{}, ErrCancelled
	case <-closed:
		return Result{}, ErrCancelled
	case <-manual:
		return Result{NeedsManualEntry: true}, nil
	case r := <-results:
		if r.err != nil {
			return Result{}, r.err
		}
		return Result{Token: r.token}, nil
	}
}

// HandleNavigation feeds a navigation event from the host's web view.
// Non-callback URLs are ignored.
func (s *EmbeddedSurface) HandleNavigation(rawURL string) {
	s.mu.Lock()
	results := s.results
	s.mu.Unlock()
	if results == nil {
		return
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		s.log.Warn("unparseable navigation url", zap.String("url", rawURL), zap.Error(err))
		return
	}

	token, err := parseCallback(u)
	if errors.Is(err, errNotCallback) {
		return
	}

	select {
	case results <- callbackResult{token: token, err: err}:
	default:
	}
}

// RequireManual resolves the pending launch as needs-manual-entry.
func (s *EmbeddedSurface) RequireManual() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual == nil {
		return
	}
	select {
	case <-s.manual:
	default:
		close(s.manual)
	}
}

// Close reports that the user dismissed the surface.
func (s *EmbeddedSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == nil {
		return
	}
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}
