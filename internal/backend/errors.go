package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a rejected backend request.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error %d", e.Status)
}

// IsConflict reports whether err is a uniqueness violation. Used to treat
// duplicate default-category creation as a benign no-op.
func IsConflict(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusConflict || apiErr.Code == "23505"
	}
	return false
}

// IsNotFound reports whether err is a missing-row response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound
	}
	return false
}

func parseAPIError(status int, body []byte) error {
	// The row API and the auth API use different error envelopes; try both.
	var envelope struct {
		Code             string `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		switch {
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		case envelope.Msg != "":
			apiErr.Message = envelope.Msg
		case envelope.ErrorDescription != "":
			apiErr.Message = envelope.ErrorDescription
		}
	}
	return apiErr
}
