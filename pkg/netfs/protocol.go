// Package netfs is the filesystem adapter layer of the network device.
//
// The device command dispatcher talks only to the Protocol interface. FS is
// the generic Protocol for filesystem-like backends: it turns open modes
// into file or directory opens, serves directory listings as EOL-terminated
// lines and routes auxiliary ("special") commands to the backend according
// to their dispatch class.
//
// A Backend only has to provide mount, unmount, file open and directory
// listing. Further capabilities (stat, mkdir, rename, ...) are optional
// interfaces; the special commands a backend advertises follow from the
// capabilities it implements.
package netfs

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotImplemented is returned by backends for operations they do not
	// provide (for example append on HTTP, file I/O on TNFS).
	ErrNotImplemented = errors.New("netfs: not implemented")

	// ErrNotOpen is returned by Read, Write and Status before Open.
	ErrNotOpen = errors.New("netfs: nothing open")

	// ErrAlreadyOpen is returned by Open while a resource is open.
	ErrAlreadyOpen = errors.New("netfs: already open")

	// ErrUnsupportedCommand is returned when a special command is not
	// supported by the backend.
	ErrUnsupportedCommand = errors.New("netfs: unsupported special command")

	// ErrDispatchMismatch is returned when a special command is invoked
	// through an entry point that disagrees with its dispatch class.
	ErrDispatchMismatch = errors.New("netfs: special command invoked with wrong payload direction")

	// ErrReadOnly is returned by Write on a resource opened for reading.
	ErrReadOnly = errors.New("netfs: opened read only")

	// ErrWriteOnly is returned by Read on a resource opened for writing.
	ErrWriteOnly = errors.New("netfs: opened write only")

	// ErrNotFound is returned by backends for missing resources.
	ErrNotFound = errors.New("netfs: not found")

	// ErrExists is returned by backends when the target already exists.
	ErrExists = errors.New("netfs: already exists")

	// ErrAccessDenied is returned by backends on permission failures.
	ErrAccessDenied = errors.New("netfs: access denied")

	// ErrInvalidDevicespec is returned for malformed locators.
	ErrInvalidDevicespec = errors.New("netfs: invalid devicespec")

	// ErrNoSpace is returned by backends when the server is out of space.
	ErrNoSpace = errors.New("netfs: no space left")

	// ErrNotConnected is returned by backends used without a session.
	ErrNotConnected = errors.New("netfs: not connected")

	// ErrTransport is returned by backends when no answer was obtained from
	// the server at all, for example after the retry budget ran out.
	ErrTransport = errors.New("netfs: transport failure")
)

// Status is what the device reports to the host after a status request.
type Status struct {
	// BytesWaiting is the number of bytes Read can return without blocking.
	BytesWaiting int

	// Connected reports whether the backend session is established.
	Connected bool

	// Error is the outcome of the last operation.
	Error ErrorKind
}

// Protocol is the capability set every backend adapter exposes to the
// device command dispatcher.
//
// Special commands are handled in two steps: SpecialInquiry classifies the
// command byte, then the dispatcher calls the one entry point matching the
// class (see Dispatch). Implementations must keep both in agreement.
type Protocol interface {
	// Open opens the resource named by loc. frame.Aux1 selects the mode.
	Open(ctx context.Context, loc *Locator, frame CommandFrame) error

	// Close releases the open resource and the backend session.
	Close(ctx context.Context) error

	// Read copies up to len(p) bytes of the open resource into p. The end
	// of the resource is io.EOF.
	Read(ctx context.Context, p []byte) (int, error)

	// Write sends p to the open resource.
	Write(ctx context.Context, p []byte) (int, error)

	// Status reports bytes waiting, connection state and the last error.
	Status(ctx context.Context) (Status, error)

	// SpecialInquiry classifies an auxiliary command by payload direction.
	SpecialInquiry(cmd byte) DispatchClass

	// SpecialNoPayload executes a DispatchNone command.
	SpecialNoPayload(ctx context.Context, frame CommandFrame) error

	// SpecialToCaller executes a DispatchToCaller command, writing its
	// result into buf.
	SpecialToCaller(ctx context.Context, frame CommandFrame, buf []byte) (int, error)

	// SpecialToBackend executes a DispatchToBackend command carrying
	// payload, usually an EOL-terminated devicespec.
	SpecialToBackend(ctx context.Context, frame CommandFrame, payload []byte) error
}

// FileInfo describes a directory entry or a stat result.
type FileInfo struct {
	Name    string    `msgpack:"n"`
	Size    int64     `msgpack:"s"`
	IsDir   bool      `msgpack:"d"`
	ModTime time.Time `msgpack:"m"`
}

// File is an open file of a backend. Read and Write are only called for
// the directions allowed by the open mode.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// Backend is the minimal set of hooks FS needs from a transport.
//
// Stateless backends implement Mount and Unmount as no-ops returning nil;
// session-based ones perform the real handshake.
type Backend interface {
	// Scheme returns the locator scheme served, used for metrics and cache
	// keys.
	Scheme() string

	Mount(ctx context.Context, loc *Locator) error
	Unmount(ctx context.Context) error

	OpenFile(ctx context.Context, path string, mode OpenMode) (File, error)
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)
}

// Optional backend capabilities. Each enables the matching special
// commands.
type (
	Stater interface {
		Stat(ctx context.Context, path string) (FileInfo, error)
	}

	DirMaker interface {
		MkDir(ctx context.Context, path string) error
	}

	DirRemover interface {
		RmDir(ctx context.Context, path string) error
	}

	Renamer interface {
		Rename(ctx context.Context, from, to string) error
	}

	Remover interface {
		Remove(ctx context.Context, path string) error
	}

	Locker interface {
		Lock(ctx context.Context, path string) error
		Unlock(ctx context.Context, path string) error
	}
)

// Sizer is implemented by Files that know how many bytes remain to be read.
type Sizer interface {
	Remaining() int
}
