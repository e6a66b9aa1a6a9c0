package fetch

import (
	"errors"
	"fmt"
)

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindWrongPermissions   Kind = "wrong_permissions"
	KindExceededLimit      Kind = "exceeded_limit"
	KindNoDataAvailable    Kind = "no_data_available"
	KindUnhandled          Kind = "unhandled"
	KindUnknown            Kind = "unknown"
)

// Kind categorizes a fetch failure.
type Kind string

// Error is the typed failure produced at the fetch/cache boundary. The
// aggregation layer never raises; only fetching does, and always through
// this type so the display layer can react per kind.
type Error struct {
	Kind   Kind
	Detail string
}

func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Title is a short user-facing heading for the error kind.
func (e *Error) Title() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid Key"
	case KindWrongPermissions:
		return "No Permission"
	case KindExceededLimit:
		return "Limit Reached"
	case KindNoDataAvailable:
		return "No Data Available"
	case KindUnhandled:
		return "Unhandled Error"
	default:
		return "Unknown Error"
	}
}

// Description is the user-facing explanation for the error kind.
func (e *Error) Description() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "The credentials you entered are incorrect."
	case KindWrongPermissions:
		return "Your API key does not have the right permissions."
	case KindExceededLimit:
		return "You have exceeded the hourly limit of API requests."
	case KindNoDataAvailable:
		return "Data is not yet available."
	case KindUnhandled:
		return "Error: " + e.Detail
	default:
		return "An unknown error occurred. Please file a bug report."
	}
}

// Classify maps an arbitrary error onto the taxonomy. Typed errors pass
// through; anything else becomes an unhandled error carrying the original
// description, so no failure is ever dropped silently.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return NewError(KindUnhandled, err.Error())
}
