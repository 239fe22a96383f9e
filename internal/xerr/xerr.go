// Package xerr defines the structured error taxonomy shared by the remote
// session and sync layers. Errors carry a string code for classification plus
// enough context (remote path, exit code, captured stderr) to diagnose a
// failure without re-running in a debug mode.
package xerr

import (
	"errors"
	"fmt"
)

// Code classifies a failure. Codes are string-based for debuggability.
type Code string

const (
	// CodeAuth indicates a bad or missing credential.
	CodeAuth Code = "AUTH_FAILED"

	// CodeTimeout indicates a command exceeded its allotted time.
	CodeTimeout Code = "TIMEOUT"

	// CodeToolUnavailable indicates no usable sync tool was found.
	CodeToolUnavailable Code = "TOOL_UNAVAILABLE"

	// CodeValidation indicates a missing/invalid target directory or an
	// operation already in progress.
	CodeValidation Code = "VALIDATION_FAILED"

	// CodeProcess indicates a non-zero exit from an external tool.
	CodeProcess Code = "PROCESS_FAILED"

	// CodeCancelled indicates the user or system aborted an in-flight
	// operation.
	CodeCancelled Code = "CANCELLED"

	// CodePermissionDenied indicates a write attempted on a non-editable
	// remote session.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeNotSupported indicates an operation the remote session does not
	// implement (create-directory, delete, rename).
	CodeNotSupported Code = "NOT_SUPPORTED"
)

// Error is the concrete error type carried by every failure in the core.
type Error struct {
	Code     Code
	Op       string // operation that failed, e.g. "listDirectory"
	Path     string // remote path involved, if any
	ExitCode int    // external process exit code, when Code == CodeProcess
	Stderr   string // captured stderr, when available
	Err      error  // wrapped cause
	Msg      string
}

func (e *Error) Error() string {
	s := string(e.Code)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Path != "" {
		s += fmt.Sprintf(" (path %q)", e.Path)
	}
	if e.Code == CodeProcess {
		s += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		s += ": " + e.Stderr
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Code == code
	}
	return false
}

// CodeOf returns the code of err, or "" if err is not a taxonomy error.
func CodeOf(err error) Code {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Code
	}
	return ""
}

func Auth(op, msg string, cause error) *Error {
	return &Error{Code: CodeAuth, Op: op, Msg: msg, Err: cause}
}

func Timeout(op string, cause error) *Error {
	return &Error{Code: CodeTimeout, Op: op, Err: cause}
}

func ToolUnavailable(tool string) *Error {
	return &Error{Code: CodeToolUnavailable, Msg: "no usable installation of " + tool}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Msg: msg}
}

func Process(op string, exitCode int, stderr string) *Error {
	return &Error{Code: CodeProcess, Op: op, ExitCode: exitCode, Stderr: stderr}
}

func Cancelled(op string) *Error {
	return &Error{Code: CodeCancelled, Op: op}
}

func PermissionDenied(path string) *Error {
	return &Error{Code: CodePermissionDenied, Path: path, Msg: "remote session is not editable"}
}

func NotSupported(op string) *Error {
	return &Error{Code: CodeNotSupported, Op: op, Msg: "operation not supported on remote targets"}
}
