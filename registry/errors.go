package registry

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrExtensionAlreadyPresent is returned when inserting an extension type
	// that is already attached to the span. This signals a coding mistake in
	// the calling layer; Insert never silently overwrites. Use Replace to
	// swap a value that may already exist.
	ErrExtensionAlreadyPresent = eris.New("extension type already present on span")
)
