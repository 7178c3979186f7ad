package unwrapr

import (
	"errors"
	"strings"
)

// Package-level errors for classification, pipeline compilation and execution.
var (
	// ErrUnknownArchiveType means neither the file name nor its leading bytes
	// matched any known compression or container format.
	ErrUnknownArchiveType = errors.New("unknown archive file type")
	// ErrMissingTool means an external program required by the pipeline is not
	// installed on this host.
	ErrMissingTool = errors.New("required external tool not found")
	// ErrUnsupportedMode means the requested mode (list, metadata) is not
	// available for this format.
	ErrUnsupportedMode = errors.New("mode not supported for this archive type")
	// ErrPasswordProtected means a tool stopped to ask for a password.
	ErrPasswordProtected = errors.New("archive is password protected")
	// ErrUnsupportedCompression means the container tool rejected the
	// compression method used inside the archive.
	ErrUnsupportedCompression = errors.New("unsupported compression method")
	// ErrDestinationCollision means no free destination name could be found.
	ErrDestinationCollision = errors.New("could not find available destination name after 999 attempts")
	// ErrNotArchive is returned for inputs that exist but cannot be processed.
	ErrNotArchive = errors.New("cannot work with a directory")
	// ErrNoDebData means a .deb package contains no data.tar member.
	ErrNoDebData = errors.New("deb package contains no data.tar member")
	// ErrInterrupted means the run was cancelled while a pipeline was writing;
	// the destination for that archive is indeterminate.
	ErrInterrupted = errors.New("extraction interrupted, output is indeterminate")
)

// ToolError is a rich error describing a failed pipeline stage. It carries the
// captured stderr text so callers can decide how much of it to show.
// Consumers can use errors.As to retrieve it.
type ToolError struct {
	// Errs holds all errors encountered while running the pipeline.
	Errs []error
	// Stage is the description of the failed stage, e.g. "decoding" or "extraction".
	Stage string
	// Command is the argv of the failed stage, joined for display.
	Command string
	// ExitCode is the failed stage's exit status.
	ExitCode int
	// Stderr is the captured error output of the whole pipeline.
	Stderr string
	// FilePath is the archive that was being processed.
	FilePath string
}

// Error satisfies the error interface. It returns a combined message from all errors.
func (e *ToolError) Error() string {
	msgs := strings.Builder{}
	for _, err := range e.Errs {
		if msgs.Len() > 0 {
			msgs.WriteString("; ")
		}

		msgs.WriteString(err.Error())
	}

	msg := e.Stage + " error: " + msgs.String()
	if e.Command != "" {
		msg += " ('" + e.Command + "')"
	}

	if e.FilePath != "" {
		msg += " (file: " + e.FilePath + ")"
	}

	return msg
}

// Unwrap returns the list of wrapped errors for use with errors.Is and errors.As.
func (e *ToolError) Unwrap() []error {
	return e.Errs
}

// classifyStderr upgrades a generic tool failure to a more actionable error
// when the captured stderr matches a known pattern.
func classifyStderr(stderr string) error {
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "password"), strings.Contains(lower, "passphrase"):
		return ErrPasswordProtected
	case strings.Contains(lower, "unsupported compression"),
		strings.Contains(lower, "unsupported method"),
		strings.Contains(lower, "compression method is not supported"):
		return ErrUnsupportedCompression
	default:
		return nil
	}
}
