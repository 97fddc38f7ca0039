package model

import "time"

// User carries the identity fields issued by the backend. The fields are
// opaque to this subsystem; they are stored and displayed, never interpreted.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// Session is the authenticated state: identity, absolute expiry and the
// bearer token used for authenticated requests. A Session is either fully
// populated or absent; there are no partial sessions.
type Session struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires"`
	Token     string    `json:"token"`
}

// Valid reports whether the session has not yet expired at now.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ExpiringSoon reports whether the remaining lifetime at now is under margin.
func (s *Session) ExpiringSoon(now time.Time, margin time.Duration) bool {
	return s.ExpiresAt.Sub(now) < margin
}
