package signin

import (
	"errors"
	"net/url"
)

var (
	errNotCallback = errors.New("not a callback url")
)

// parseCallback extracts the sign-in outcome from a callback redirect URL.
// The provider redirects to <callback>?success=true&token=<opaque> on
// approval or <callback>?error=<reason> on failure. URLs that carry
// neither are navigation noise and return errNotCallback.
func parseCallback(u *url.URL) (string, error) {
	q := u.Query()

	if reason := q.Get("error"); reason != "" {
		return "", &ProviderError{Reason: reason}
	}

	if q.Get("success") == "true" {
		if token := q.Get("token"); token != "" {
			return token, nil
		}
		return "", &ProviderError{Reason: "missing token in callback"}
	}

	return "", errNotCallback
}
