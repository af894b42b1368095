package contents

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the contents service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("contents service returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("contents service returned %d", e.Status)
}

// AsAPIError checks whether err carries an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.Status == http.StatusNotFound
}
