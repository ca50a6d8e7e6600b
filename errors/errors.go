package errors

import (
	// Go internal packages
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// Error defines a standard application error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Wrapped underlying error.
	WrappedErr error `json:"-"`
}

// Error returns the string representation of the error message.
func (e *Error) Error() string {
	if e.WrappedErr != nil && e.Message == "" {
		return e.Kind.String() + ": " + e.WrappedErr.Error()
	}
	if e.WrappedErr != nil {
		return e.Message + ": " + e.WrappedErr.Error()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// JSON renders the error the way it is sent to API clients.
func (e *Error) JSON() string {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(e)
	return buf.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.WrappedErr
}

// NewError returns standard go error with given string
func NewError(e string) error {
	return errors.New(e)
}

// Kind defines the kind or class of an error.
type Kind uint8

// Transport agnostic error "kinds"
const (
	Other                Kind = iota // Unclassified error
	Internal                         // Storage or consistency failure
	NotFound                         // Lead, institution or counselor does not exist
	InvalidLeadData                  // Lead failed field validation
	InvalidArgument                  // Cross-entity relationship violated
	CounselorUnavailable             // Counselor at capacity or inactive
	InvalidState                     // Operation not legal for the lead's current status
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Internal:
		return "internal error"
	case NotFound:
		return "entity not found"
	case InvalidLeadData:
		return "invalid lead data"
	case InvalidArgument:
		return "invalid argument"
	case CounselorUnavailable:
		return "counselor unavailable"
	case InvalidState:
		return "invalid state"
	default:
		return "unknown error kind"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// HTTPStatus maps a kind onto the status code the transport layer reports.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case InvalidLeadData, InvalidArgument, InvalidState:
		return http.StatusBadRequest
	case CounselorUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// E builds an *Error from any mix of Kind, error and message string.
// A wrapped *Error with no explicit kind lends its kind to the new error.
func E(args ...interface{}) error {
	e := &Error{}
	kindSet := false
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
			kindSet = true
		case error:
			e.WrappedErr = arg
		case string:
			e.Message = arg
		}
	}
	if !kindSet && e.WrappedErr != nil {
		e.Kind = KindOf(e.WrappedErr)
	}
	return e
}

// KindOf reports the kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	return IsKind(err, CounselorUnavailable)
}

// NewInternalError creates a new internal error
func NewInternalError(msg string) error {
	return E(Internal, msg)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string) error {
	return E(NotFound, msg)
}

// NewInvalidLeadDataError creates a new lead validation error
func NewInvalidLeadDataError(msg string) error {
	return E(InvalidLeadData, msg)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(msg string) error {
	return E(InvalidArgument, msg)
}

// NewCounselorUnavailableError creates a new counselor unavailable error
func NewCounselorUnavailableError(msg string) error {
	return E(CounselorUnavailable, msg)
}

// NewInvalidStateError creates a new invalid state error
func NewInvalidStateError(msg string) error {
	return E(InvalidState, msg)
}

var (
	As = errors.As
	Is = errors.Is
)
