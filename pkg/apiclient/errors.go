package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable is returned when the backend cannot be reached, the
	// circuit breaker is open, or the response could not be read
	ErrUnavailable = errors.New("backend unavailable")
)

// Structured error codes the backend may attach to its error envelope
const (
	CodeUserNotFound       = "user_not_found"
	CodeUsernameTaken      = "username_taken"
	CodeRelationshipExists = "relationship_exists"
	CodeRelationshipAbsent = "relationship_not_found"
	CodeUserHasFriends     = "user_has_friends"
	CodeSelfLink           = "self_link"
	CodeValidation         = "validation_error"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	Op     string
	Status int
	Detail string
	Code   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: backend returned %d (%s): %s", e.Op, e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Detail)
}

// decodeError builds an APIError from a response body. The detail field is
// either a plain string or a list of validation items carrying a msg field.
func decodeError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, Status: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Code   string          `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code = envelope.Code
	apiErr.Detail = detailText(envelope.Detail)
	return apiErr
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if len(item.Loc) > 0 {
				field := fmt.Sprint(item.Loc[len(item.Loc)-1])
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, item.Msg))
			} else {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(raw)
}
