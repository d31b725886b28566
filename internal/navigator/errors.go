package navigator

import (
	"errors"
	"fmt"
)

const (
	// LoadErrorMessage is shown in the mount point when the data source
	// cannot be read.
	LoadErrorMessage = "Error loading genetics tree data"
	// RenderErrorMessage is shown when layout or reconciliation fails.
	RenderErrorMessage = "Error rendering genetics tree"
)

// ErrNoMountPoint is wrapped by RenderError when the viewport has no width.
var ErrNoMountPoint = errors.New("navigator: mount point has no width")

// RenderError reports a failure during layout or reconciliation.
type RenderError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("navigator: render %s: %v", e.Op, e.Err)
}

// Unwrap exposes the cause.
func (e *RenderError) Unwrap() error { return e.Err }
