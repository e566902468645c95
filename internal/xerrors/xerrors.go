// Package xerrors defines the DownloadError taxonomy that crosses every
// fallible boundary in the engine, and classifies stdlib errors into it.
package xerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Code identifies the kind of failure a DownloadError carries.
type Code string

const (
	InvalidUrl                 Code = "InvalidUrl"
	PathNotFound               Code = "PathNotFound"
	FileAlreadyExists          Code = "FileAlreadyExists"
	RangeNotSatisfiable        Code = "RangeNotSatisfiable"
	HttpError                  Code = "HttpError"
	DiskOperationFailed        Code = "DiskOperationFailed"
	PermissionDenied           Code = "PermissionDenied"
	NullReference              Code = "NullReference"
	ArgumentOutOfRange         Code = "ArgumentOutOfRange"
	ThreadNotFound             Code = "ThreadNotFound"
	ThreadCancelled            Code = "ThreadCancelled"
	ThreadMaxExceeded          Code = "ThreadMaxExceeded"
	ThreadCreationFailed       Code = "ThreadCreationFailed"
	UnexpectedOrUnknownException Code = "UnexpectedOrUnknownException"
)

// DownloadError is the sole error currency crossing package boundaries in
// this module. It carries a tagged kind plus a message, and optionally
// wraps an underlying cause for %w-style inspection.
type DownloadError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *DownloadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DownloadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New builds a DownloadError with no wrapped cause.
func New(code Code, message string) *DownloadError {
	return &DownloadError{Code: code, Message: message}
}

// Wrap builds a DownloadError wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *DownloadError {
	return &DownloadError{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is a *DownloadError of the given code.
func Is(err error, code Code) bool {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ClassifyTransport maps a low-level transport error (returned by
// http.Client.Do, io.Reader.Read, io.Writer.Write, or context
// cancellation) into a DownloadError of the appropriate kind. Context
// cancellation is intentionally preserved as context.Canceled rather than
// wrapped, so callers can distinguish "cancelled" (not an error, per
// spec's error-handling policy) from genuine failures.
func ClassifyTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(HttpError, op+" failed (network)", err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return Wrap(PathNotFound, op+" failed (not found)", err)
	}
	if errors.Is(err, os.ErrPermission) {
		return Wrap(PermissionDenied, op+" failed (permission)", err)
	}
	return Wrap(DiskOperationFailed, op+" failed", err)
}

// ClassifyHTTPStatus maps a non-2xx/206 HTTP response status into a
// DownloadError, per the ranged-GET contract in spec §4.6.
func ClassifyHTTPStatus(status int) error {
	switch {
	case status == http.StatusRequestedRangeNotSatisfiable:
		return New(RangeNotSatisfiable, fmt.Sprintf("server returned %d", status))
	case status >= 200 && status < 300:
		return nil
	default:
		return New(HttpError, fmt.Sprintf("unexpected status: %d", status))
	}
}
