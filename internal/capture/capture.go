package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied means camera access was refused. The text-entry
	// path stays available; QR scanning is an enhancement, never a
	// requirement for sign-in.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrEmptyToken means the user submitted a blank token.
	ErrEmptyToken = errors.New("empty token")
)

// Camera is the platform capability behind QR capture: permission
// negotiation plus a blocking scan that resolves to the decoded payload.
type Camera interface {
	RequestPermission(ctx context.Context) (bool, error)
	Scan(ctx context.Context) (string, error)
}

// Capture collects a raw token from the user, by free-text paste or by
// scanning the QR code the browser page displays.
type Capture struct {
	in     io.Reader
	out    io.Writer
	camera Camera // nil when the host has no camera
	log    *zap.Logger
}

func New(in io.Reader, out io.Writer, camera Camera, log *zap.Logger) *Capture {
	return &Capture{in: in, out: out, camera: camera, log: log}
}

// FromText reads one line from the input and returns it trimmed.
func (c *Capture) FromText(_ context.Context) (string, error) {
	fmt.Fprint(c.out, "Paste the token from your browser: ")

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(line)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// FromQR negotiates camera permission and scans for a QR-encoded token.
func (c *Capture) FromQR(ctx context.Context) (string, error) {
	if c.camera == nil {
		return "", ErrPermissionDenied
	}

	granted, err := c.camera.RequestPermission(ctx)
	if err != nil {
		return "", fmt.Errorf("camera permission request failed: %w", err)
	}
	if !granted {
		return "", ErrPermissionDenied
	}

	token, err := c.camera.Scan(ctx)
	if err != nil {
		return "", err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// Read prefers the QR path when a camera is present and falls back to
// text entry when scanning is unavailable or permission is denied.
func (c *Capture) Read(ctx context.Context) (string, error) {
	if c.camera != nil {
		token, err := c.FromQR(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrPermissionDenied) {
			return "", err
		}
		c.log.Warn("qr capture unavailable, using text entry", zap.Error(err))
	}
	return c.FromText(ctx)
}
