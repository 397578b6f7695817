// Package resumefit provides custom error types for better error handling and reporting.
package resumefit

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Errors returned by the pipeline match them through errors.Is.
var (
	// ErrNotFound means the input container or its primary part is missing.
	ErrNotFound = errors.New("not found")
	// ErrMalformed means markup violates the closed vocabulary or lacks a required element.
	ErrMalformed = errors.New("malformed markup")
	// ErrInvalidResponse means the rewriter payload failed the response contract.
	ErrInvalidResponse = errors.New("invalid rewriter response")
	// ErrAssetMissing means an image id has no side-table entry. It is never fatal.
	ErrAssetMissing = errors.New("asset missing")
	// ErrRewrite means the rewriter call itself failed, was cancelled or timed out.
	ErrRewrite = errors.New("rewrite failed")
	// ErrStaleIndex means a patch was attempted against a primary part that
	// differs from the one the addresses were computed on.
	ErrStaleIndex = errors.New("stale address index")
)

// Stage names the pipeline step an error belongs to.
type Stage string

const (
	StageExtract     Stage = "extract"
	StageRewrite     Stage = "rewrite"
	StageReconstruct Stage = "reconstruct"
)

// StageError reports a fatal pipeline failure
type StageError struct {
	RunID string
	Stage Stage
	Kind  error
	// Raw keeps the offending rewriter payload for InvalidResponse failures
	Raw   string
	Cause error
}

func (e *StageError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s stage failed", e.Stage)
	if e.RunID != "" {
		fmt.Fprintf(&sb, " (run %s)", e.RunID)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	} else if e.Kind != nil {
		fmt.Fprintf(&sb, ": %v", e.Kind)
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// MalformedError names the markup that could not be interpreted
type MalformedError struct {
	Part   string
	Path   string
	Reason string
	Cause  error
}

func (e *MalformedError) Error() string {
	msg := "malformed " + e.Part
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap makes MalformedError match ErrMalformed.
func (e *MalformedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrMalformed, e.Cause}
	}
	return []error{ErrMalformed}
}

func newMalformed(part, path, reason string) error {
	return &MalformedError{Part: part, Path: path, Reason: reason}
}

// ResponseError describes why a rewriter payload was rejected
type ResponseError struct {
	Reason string
	Cause  error
}

func (e *ResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid rewriter response: %s: %v", e.Reason, e.Cause)
	}
	return "invalid rewriter response: " + e.Reason
}

// Unwrap makes ResponseError match ErrInvalidResponse.
func (e *ResponseError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidResponse, e.Cause}
	}
	return []error{ErrInvalidResponse}
}

func invalidResponse(reason string, cause error) error {
	return &ResponseError{Reason: reason, Cause: cause}
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsMalformed checks if an error is a malformed-markup error
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformed) }

// IsInvalidResponse checks if an error is a response-contract error
func IsInvalidResponse(err error) bool { return errors.Is(err, ErrInvalidResponse) }

// StageOf returns the stage a pipeline error belongs to, or "" if err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// RawResponse returns the rewriter payload retained by an InvalidResponse failure.
func RawResponse(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Raw
	}
	return ""
}
