package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gneuro/tgrelay/internal/provider"
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini: %d: %s", e.StatusCode, e.Message)
}

// mapHTTPError maps an HTTP status code and response body to an *APIError
// wrapped with the matching provider sentinel. Returns nil for 2xx codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: statusCode}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
		apiErr.Status = er.Error.Status
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: %w", provider.ErrRateLimit, apiErr)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %w", provider.ErrAuth, apiErr)
	case statusCode == 400 && strings.Contains(strings.ToLower(apiErr.Message), "token"):
		return fmt.Errorf("%w: %w", provider.ErrContextLength, apiErr)
	case statusCode >= 500:
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, apiErr)
	default:
		return apiErr
	}
}

// mapConnectionError maps network-level errors to provider sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
