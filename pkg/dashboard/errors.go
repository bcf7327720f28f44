package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ha1tch/friendgraph/pkg/apiclient"
	"github.com/ha1tch/friendgraph/pkg/store"
)

// Kind is the user-facing category of a failed operation
type Kind int

const (
	// FetchError: backend unreachable, 5xx, or an unreadable response
	FetchError Kind = iota + 1
	// ValidationRejected: the payload was refused
	ValidationRejected
	// ConflictRejected: the users are already linked; harmless
	ConflictRejected
	// ConstraintRejected: delete refused while friendships remain
	ConstraintRejected
	// NotFound: a stale id was referenced
	NotFound
)

func (k Kind) String() string {
	switch k {
	case FetchError:
		return "fetch_error"
	case ValidationRejected:
		return "validation_rejected"
	case ConflictRejected:
		return "conflict_rejected"
	case ConstraintRejected:
		return "constraint_rejected"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Operation names used in errors, logs and metrics
const (
	OpLoad    = "load"
	OpRefresh = "refresh"
	OpCreate  = "create_user"
	OpUpdate  = "update_user"
	OpDelete  = "delete_user"
	OpLink    = "link_users"
	OpUnlink  = "unlink_users"
)

var (
	// ErrAlreadyLinked is the cause of a connect rejected before any backend call
	ErrAlreadyLinked = errors.New("users already linked")
	// ErrSelfLink is the cause of a connect from a user to itself
	ErrSelfLink = errors.New("cannot link a user to itself")
)

const (
	msgAlreadyFriends = "These users are already friends!"
	msgHasFriends     = "Cannot delete user with existing friendships. Unlink all friends first"
)

// Error is a classified operation failure
type Error struct {
	Kind    Kind
	Op      string
	Message string // user-facing text
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the category of err if it is a classified *Error
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsInformational reports whether err should be shown as a notice rather
// than an error
func IsInformational(err error) bool {
	k, ok := KindOf(err)
	return ok && k == ConflictRejected
}

// Classify maps a failure of op onto the error taxonomy. A structured code
// from the backend wins; without one the status and the detail text decide.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	e := &Error{Op: op, Err: err}

	var apiErr *apiclient.APIError
	var fetchErr *store.FetchError
	switch {
	case errors.As(err, &fetchErr),
		errors.Is(err, apiclient.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		e.Kind = FetchError
	case errors.As(err, &apiErr):
		e.Kind = classifyAPIError(op, apiErr)
		e.Message = apiErr.Detail
	default:
		e.Kind = FetchError
	}

	switch e.Kind {
	case ConflictRejected:
		e.Message = msgAlreadyFriends
	case ConstraintRejected:
		if e.Message == "" {
			e.Message = msgHasFriends
		}
	case FetchError:
		e.Message = fallbackMessage(op)
	}
	if e.Message == "" {
		e.Message = fallbackMessage(op)
	}
	return e
}

func classifyAPIError(op string, apiErr *apiclient.APIError) Kind {
	switch apiErr.Code {
	case apiclient.CodeUserNotFound, apiclient.CodeRelationshipAbsent:
		return NotFound
	case apiclient.CodeRelationshipExists:
		return ConflictRejected
	case apiclient.CodeUserHasFriends:
		return ConstraintRejected
	case apiclient.CodeUsernameTaken, apiclient.CodeSelfLink, apiclient.CodeValidation:
		return ValidationRejected
	}

	// No code: fall back to the detail text. This depends on the backend's
	// wording and breaks silently if it changes.
	detail := strings.ToLower(apiErr.Detail)
	switch {
	case apiErr.Status >= 500:
		return FetchError
	case apiErr.Status == 404 || strings.Contains(detail, "not found"):
		return NotFound
	case strings.Contains(detail, "existing friendships"):
		return ConstraintRejected
	case op == OpLink && (apiErr.Status == 409 || strings.Contains(detail, "already exists")):
		return ConflictRejected
	case op == OpDelete && apiErr.Status == 409:
		return ConstraintRejected
	default:
		return ValidationRejected
	}
}

func fallbackMessage(op string) string {
	switch op {
	case OpLoad, OpRefresh:
		return "Failed to fetch users"
	case OpCreate:
		return "Failed to create user"
	case OpUpdate:
		return "Failed to update user"
	case OpDelete:
		return "Failed to delete user"
	case OpLink:
		return "Failed to link users"
	case OpUnlink:
		return "Failed to unlink users"
	default:
		return "Request failed"
	}
}
