package netfs

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidCommand is returned for command frames with invalid parameters.
var ErrInvalidCommand = errors.New("netfs: invalid command")

// ErrorKind is the device status byte reported to the host.
type ErrorKind byte

const (
	StatusSuccess          ErrorKind = 1
	StatusWriteOnly        ErrorKind = 131
	StatusInvalidCommand   ErrorKind = 132
	StatusReadOnly         ErrorKind = 135
	StatusEndOfFile        ErrorKind = 136
	StatusTimeout          ErrorKind = 138
	StatusGeneral          ErrorKind = 144
	StatusNotImplemented   ErrorKind = 146
	StatusFileExists       ErrorKind = 151
	StatusNoSpace          ErrorKind = 162
	StatusInvalidDevspec   ErrorKind = 165
	StatusAccessDenied     ErrorKind = 167
	StatusFileNotFound     ErrorKind = 170
	StatusNotConnected     ErrorKind = 207
	StatusServerNotRunning ErrorKind = 208
)

func (k ErrorKind) String() string {
	switch k {
	case StatusSuccess:
		return "success"
	case StatusWriteOnly:
		return "write only"
	case StatusInvalidCommand:
		return "invalid command"
	case StatusReadOnly:
		return "read only"
	case StatusEndOfFile:
		return "end of file"
	case StatusTimeout:
		return "timeout"
	case StatusGeneral:
		return "general error"
	case StatusNotImplemented:
		return "not implemented"
	case StatusFileExists:
		return "file exists"
	case StatusNoSpace:
		return "no space on device"
	case StatusInvalidDevspec:
		return "invalid devicespec"
	case StatusAccessDenied:
		return "access denied"
	case StatusFileNotFound:
		return "file not found"
	case StatusNotConnected:
		return "not connected"
	case StatusServerNotRunning:
		return "server not running"
	default:
		return "unknown"
	}
}

// ErrorKindOf maps err to the status byte the device reports.
//
// Backends translate their own failures into the errors declared by this
// package; anything else is a general error. ErrTransport is reported as a
// general error too: an exhausted retry budget says nothing about the
// operation, while StatusTimeout is kept for a caller deadline running out.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return StatusSuccess
	}

	switch {
	case errors.Is(err, io.EOF):
		return StatusEndOfFile
	case errors.Is(err, ErrNotImplemented), errors.Is(err, ErrUnsupportedCommand):
		return StatusNotImplemented
	case errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrDispatchMismatch),
		errors.Is(err, ErrAlreadyOpen):
		return StatusInvalidCommand
	case errors.Is(err, ErrInvalidDevicespec):
		return StatusInvalidDevspec
	case errors.Is(err, ErrReadOnly):
		return StatusReadOnly
	case errors.Is(err, ErrWriteOnly):
		return StatusWriteOnly
	case errors.Is(err, ErrNotFound):
		return StatusFileNotFound
	case errors.Is(err, ErrExists):
		return StatusFileExists
	case errors.Is(err, ErrAccessDenied):
		return StatusAccessDenied
	case errors.Is(err, ErrNoSpace):
		return StatusNoSpace
	case errors.Is(err, ErrNotOpen), errors.Is(err, ErrNotConnected):
		return StatusNotConnected
	case errors.Is(err, ErrTransport):
		return StatusGeneral
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusGeneral
	}
}
