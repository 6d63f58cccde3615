package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrDataFormat       = errors.New("data format error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrParameter        = errors.New("invalid parameter")
	ErrPrecondition     = errors.New("precondition failed")
	ErrPersistence      = errors.New("persistence error")
	ErrModelInference   = errors.New("model inference error")
)

// Error carries enough context (product, operation, failed rule) to diagnose
// a failure without access to the process.
type Error struct {
	Kind      error
	ProductID string
	Op        string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.ProductID != "" {
		fmt.Fprintf(&b, " product=%s", e.ProductID)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, productID, op, format string, args ...any) *Error {
	return &Error{Kind: kind, ProductID: productID, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Kind returns the error kind name used for metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDataFormat):
		return "data_format"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrParameter):
		return "parameter"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrModelInference):
		return "inference"
	default:
		return "internal"
	}
}
