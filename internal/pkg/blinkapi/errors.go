package blinkapi

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrVerificationRequired is returned by Login when the account wants
	// this client verified with an emailed or texted PIN
	ErrVerificationRequired = errors.New("client verification required")

	// ErrNotLoggedIn means there is no session token to call the API with
	ErrNotLoggedIn = errors.New("not logged in to blink")
)

// APIError is a non-2xx response from the REST API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("blink api: HTTP status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is the API rejecting our credentials
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
