package tnfs

import (
	"errors"
	"fmt"

	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// Local precondition failures. These are detected before anything is sent.
var (
	// ErrNotMounted is returned by operations that need an active session.
	ErrNotMounted = errors.New("tnfs: not mounted")

	// ErrDirectoryOpen is returned by OpenDir while a directory handle is
	// already held. The caller must CloseDir first.
	ErrDirectoryOpen = errors.New("tnfs: a directory is already open")

	// ErrNoDirectory is returned by ReadDir and CloseDir when no directory
	// handle is held.
	ErrNoDirectory = errors.New("tnfs: no open directory")

	// ErrBusy is returned when a transaction is started while another one
	// is still awaiting its reply on the same session.
	ErrBusy = errors.New("tnfs: transaction already in flight")

	// ErrInvalidPath aliases wire.ErrInvalidPath.
	ErrInvalidPath = wire.ErrInvalidPath

	// ErrPayloadTooLarge aliases wire.ErrPayloadTooLarge.
	ErrPayloadTooLarge = wire.ErrPayloadTooLarge
)

// TransportErrorKind classifies a transport level failure.
type TransportErrorKind int

const (
	// TransportSendFailed means the datagram could not be handed to the
	// network.
	TransportSendFailed TransportErrorKind = iota

	// TransportTimeout means no matching reply arrived within the attempt's
	// timeout.
	TransportTimeout

	// TransportMalformed means a reply was too short to decode, or lacked a
	// field its command requires.
	TransportMalformed

	// TransportExhausted means every attempt in the retry budget failed.
	TransportExhausted

	// TransportCancelled means the caller's context ended the transaction.
	TransportCancelled
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportSendFailed:
		return "send failed"
	case TransportTimeout:
		return "timeout"
	case TransportMalformed:
		return "malformed reply"
	case TransportExhausted:
		return "retries exhausted"
	case TransportCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TransportError reports that no usable reply was obtained. It carries no
// meaning about the requested operation itself: the server may or may not
// have acted on it.
type TransportError struct {
	Kind     TransportErrorKind
	Command  wire.Command
	Attempts int

	// Err is the underlying cause: the last attempt's failure for
	// TransportExhausted, the context error for TransportCancelled.
	Err error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("tnfs: %s: %s", e.Command, e.Kind)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResultError is a well formed reply carrying a non-success result code.
// It is never retried.
type ResultError struct {
	Command wire.Command
	Code    wire.ResultCode
	Path    string
}

func (e *ResultError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tnfs: %s %s: %s (%s)", e.Command, e.Path, e.Code.Description(), e.Code)
	}
	return fmt.Sprintf("tnfs: %s: %s (%s)", e.Command, e.Code.Description(), e.Code)
}

// ResultOf maps err to the result code a caller should report.
//
//   - nil: ResultSuccess
//   - *ResultError: its code
//   - anything else: ResultTransactionFailed
func ResultOf(err error) wire.ResultCode {
	if err == nil {
		return wire.ResultSuccess
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code
	}
	return wire.ResultTransactionFailed
}

// IsEOF reports whether err is the end-of-directory result.
func IsEOF(err error) bool {
	var re *ResultError
	return errors.As(err, &re) && re.Code == wire.ResultEndOfFile
}

// IsTransport reports whether err is a transport failure rather than a
// server answer or a local precondition.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
