package vfs

import (
	"errors"
	"fmt"
)

// FSError is the error returned by every filesystem operation.
//
// Code carries the NTSTATUS-like category the host driver translates into
// its own status; Op and Path locate the failure for logs.
type FSError struct {
	// Code is the error category
	Code ErrorCode

	// Op is the operation that failed (e.g. "create", "move")
	Op string

	// Path is the path the operation was applied to, if known
	Path string

	// Err is an underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *FSError) Error() string {
	msg := e.Op + ": " + e.Code.Error()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FSError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) and friends match by code.
func (e *FSError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

// ErrorCode is the category of a filesystem error. ErrorCode values are
// themselves errors so they can be used as errors.Is targets.
type ErrorCode int

const (
	// ErrInvalidParameter indicates a malformed request (bad disposition,
	// impossible option combination)
	ErrInvalidParameter ErrorCode = iota + 1

	// ErrInvalidName indicates a malformed path, component or stream name
	ErrInvalidName

	// ErrNotFound indicates the leaf object does not exist
	ErrNotFound

	// ErrPathNotFound indicates an intermediate component is not a directory
	ErrPathNotFound

	// ErrNameCollision indicates the target name is already taken
	ErrNameCollision

	// ErrAccessDenied indicates the operation is not permitted on the target
	ErrAccessDenied

	// ErrDeletePending indicates the target (or its parent) is being deleted
	ErrDeletePending

	// ErrCannotDelete indicates a readonly entry was asked to be deleted
	ErrCannotDelete

	// ErrNotADirectory indicates a directory was required
	ErrNotADirectory

	// ErrFileIsADirectory indicates a non-directory was required
	ErrFileIsADirectory

	// ErrDirectoryNotEmpty indicates a directory still has children
	ErrDirectoryNotEmpty

	// ErrSharingViolation indicates other handles prevent the operation
	ErrSharingViolation

	// ErrIOTimeout indicates a bounded wait for remote content expired
	ErrIOTimeout

	// ErrInvalidDeviceRequest indicates the operation does not apply to the
	// kind of object the handle refers to
	ErrInvalidDeviceRequest

	// ErrBufferTooSmall indicates a caller buffer cannot hold the result
	ErrBufferTooSmall
)

var codeNames = map[ErrorCode]string{
	ErrInvalidParameter:     "invalid parameter",
	ErrInvalidName:          "invalid name",
	ErrNotFound:             "object not found",
	ErrPathNotFound:         "path not found",
	ErrNameCollision:        "name collision",
	ErrAccessDenied:         "access denied",
	ErrDeletePending:        "delete pending",
	ErrCannotDelete:         "cannot delete",
	ErrNotADirectory:        "not a directory",
	ErrFileIsADirectory:     "file is a directory",
	ErrDirectoryNotEmpty:    "directory not empty",
	ErrSharingViolation:     "sharing violation",
	ErrIOTimeout:            "i/o timeout",
	ErrInvalidDeviceRequest: "invalid device request",
	ErrBufferTooSmall:       "buffer too small",
}

// Error implements the error interface.
func (c ErrorCode) Error() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

func newError(code ErrorCode, op, path string) *FSError {
	return &FSError{Code: code, Op: op, Path: path}
}

func wrapError(code ErrorCode, op, path string, err error) *FSError {
	return &FSError{Code: code, Op: op, Path: path, Err: err}
}

// withOp fills in op and path on a bare ErrorCode returned by a helper, so
// helpers can return codes without knowing which operation called them.
func withOp(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if code, ok := err.(ErrorCode); ok {
		return newError(code, op, path)
	}
	return err
}

// CodeOf extracts the ErrorCode from err. It returns 0 for nil and for
// errors that did not originate in this package.
func CodeOf(err error) ErrorCode {
	switch e := err.(type) {
	case nil:
		return 0
	case ErrorCode:
		return e
	case *FSError:
		return e.Code
	}
	var fe *FSError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}
