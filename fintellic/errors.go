package fintellic

import (
	"fmt"
)

// error taxonomy at the gateway boundary.
// 400/401/403/422 class failures map to domain errors, everything else
// is a generic FetchError. errors are never swallowed at a store boundary
// except where a fallback is explicitly defined (stale cache reads,
// best effort device token unregister).

type AuthError struct {
	StatusCode int
	Message    string
}

func (self *AuthError) Error() string {
	if self.Message == "" {
		return fmt.Sprintf("auth error (%d)", self.StatusCode)
	}
	return fmt.Sprintf("auth error (%d): %s", self.StatusCode, self.Message)
}

type ValidationError struct {
	StatusCode int
	Message    string
}

func (self *ValidationError) Error() string {
	if self.Message == "" {
		return fmt.Sprintf("validation error (%d)", self.StatusCode)
	}
	return fmt.Sprintf("validation error (%d): %s", self.StatusCode, self.Message)
}

type FetchError struct {
	StatusCode int
	Message    string
}

func (self *FetchError) Error() string {
	if self.Message == "" {
		return fmt.Sprintf("fetch error (%d)", self.StatusCode)
	}
	return fmt.Sprintf("fetch error (%d): %s", self.StatusCode, self.Message)
}

type VoteError struct {
	FilingId Id
	Message  string
}

func (self *VoteError) Error() string {
	return fmt.Sprintf("vote rejected for %s: %s", self.FilingId, self.Message)
}

type PermissionError struct {
	Capability string
}

func (self *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", self.Capability)
}

// maps an http-like status to the domain error taxonomy
func classifyStatus(statusCode int, message string) error {
	switch statusCode {
	case 401, 403:
		return &AuthError{
			StatusCode: statusCode,
			Message:    message,
		}
	case 400, 409, 422:
		return &ValidationError{
			StatusCode: statusCode,
			Message:    message,
		}
	default:
		return &FetchError{
			StatusCode: statusCode,
			Message:    message,
		}
	}
}
