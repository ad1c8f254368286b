package tnfs

import (
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/netfs/pkg/netfs"
	client "github.com/marmos91/netfs/pkg/tnfs"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// mapError wraps a session error with the netfs error it corresponds to.
// The session error stays in the chain, so client.ResultOf and
// client.IsTransport keep working on the result.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if kind := netfsKind(err); kind != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

func netfsKind(err error) error {
	switch {
	case errors.Is(err, client.ErrNotMounted), errors.Is(err, client.ErrNoDirectory):
		return netfs.ErrNotConnected
	case errors.Is(err, client.ErrDirectoryOpen), errors.Is(err, client.ErrBusy):
		return netfs.ErrInvalidCommand
	case errors.Is(err, client.ErrInvalidPath):
		return netfs.ErrInvalidDevicespec
	}

	var te *client.TransportError
	if errors.As(err, &te) {
		// A cancelled transaction carries the context error, which the
		// adapter reports on its own.
		if te.Kind == client.TransportCancelled {
			return nil
		}
		return netfs.ErrTransport
	}

	var re *client.ResultError
	if errors.As(err, &re) {
		return resultKind(re.Code)
	}
	return nil
}

func resultKind(code wire.ResultCode) error {
	switch code {
	case wire.ResultNotFound:
		return netfs.ErrNotFound
	case wire.ResultExists:
		return netfs.ErrExists
	case wire.ResultAccessDenied, wire.ResultNotPermitted:
		return netfs.ErrAccessDenied
	case wire.ResultNoSpace:
		return netfs.ErrNoSpace
	case wire.ResultReadOnlyFS:
		return netfs.ErrReadOnly
	case wire.ResultEndOfFile:
		return io.EOF
	case wire.ResultUnimplemented:
		return netfs.ErrNotImplemented
	default:
		return nil
	}
}
