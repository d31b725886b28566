package straindata

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSource is wrapped by FetchError for references with an
// unknown scheme.
var ErrUnsupportedSource = errors.New("straindata: unsupported source")

// FetchError reports an unreachable data source or a non-success status.
type FetchError struct {
	Source string
	// Status is the HTTP status when the source answered; 0 otherwise.
	Status int
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("straindata: fetch %s: status %d", e.Source, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("straindata: fetch %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("straindata: fetch %s failed", e.Source)
	}
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// MalformedDataError reports a dataset without a readable root name.
type MalformedDataError struct {
	Source string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *MalformedDataError) Error() string {
	msg := fmt.Sprintf("straindata: malformed data in %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the decode error, if any.
func (e *MalformedDataError) Unwrap() error { return e.Err }

// Kind names the error class for logs and metrics.
func Kind(err error) string {
	var fetchErr *FetchError
	var malformed *MalformedDataError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fetchErr):
		return "fetch_error"
	case errors.As(err, &malformed):
		return "malformed_data"
	default:
		return "error"
	}
}
