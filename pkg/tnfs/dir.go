package tnfs

import (
	"context"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// OpenDir opens path for enumeration and stores the returned handle.
//
// Only one directory may be open per session: while a handle is held, or
// another OpenDir is still waiting for its reply, OpenDir fails with
// ErrDirectoryOpen without contacting the server.
func (s *Session) OpenDir(ctx context.Context, path string) error {
	if err := s.requireMounted(); err != nil {
		return err
	}
	if err := s.reserveDir(); err != nil {
		return err
	}
	defer s.releaseDir()

	payload, err := wire.PathPayload(path)
	if err != nil {
		return err
	}

	reply, err := s.Transact(ctx, wire.CmdOpenDir, payload)
	if err != nil {
		return err
	}
	if code := reply.Result(); code != wire.ResultSuccess {
		return &ResultError{Command: wire.CmdOpenDir, Code: code, Path: path}
	}

	s.mu.Lock()
	s.dirHandle = reply.Payload[1]
	s.dirOpen = true
	s.mu.Unlock()

	logger.Debug("TNFS %s: opened directory %s handle=%d", s.id, path, reply.Payload[1])
	return nil
}

// reserveDir claims the directory slot for an OpenDir in progress.
func (s *Session) reserveDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirOpen || s.dirOpening {
		return ErrDirectoryOpen
	}
	s.dirOpening = true
	return nil
}

func (s *Session) releaseDir() {
	s.mu.Lock()
	s.dirOpening = false
	s.mu.Unlock()
}

// ReadDir reads the next entry name of the open directory into buf and
// returns the number of bytes written. Names longer than buf are truncated;
// buf is never overrun and no terminator is written.
//
// The end of the directory is reported as a *ResultError with code
// wire.ResultEndOfFile (see IsEOF). It leaves the handle untouched so the
// caller can still CloseDir.
func (s *Session) ReadDir(ctx context.Context, buf []byte) (int, error) {
	if err := s.requireMounted(); err != nil {
		return 0, err
	}
	handle, open := s.DirectoryHandle()
	if !open {
		return 0, ErrNoDirectory
	}

	reply, err := s.Transact(ctx, wire.CmdReadDir, []byte{handle})
	if err != nil {
		return 0, err
	}
	if code := reply.Result(); code != wire.ResultSuccess {
		return 0, &ResultError{Command: wire.CmdReadDir, Code: code}
	}

	name := wire.CString(reply.Payload[1:])
	return copy(buf, name), nil
}

// ReadDirName is ReadDir returning the entry as a string.
func (s *Session) ReadDirName(ctx context.Context) (string, error) {
	var buf [wire.MaxPayloadSize]byte
	n, err := s.ReadDir(ctx, buf[:])
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// CloseDir closes the open directory.
//
// On success the handle is forgotten. When the server rejects the close,
// the handle is kept (the caller may retry) unless
// Options.ClearHandleOnFailedClose is set. A transport failure always keeps
// the handle.
func (s *Session) CloseDir(ctx context.Context) error {
	if err := s.requireMounted(); err != nil {
		return err
	}
	handle, open := s.DirectoryHandle()
	if !open {
		return ErrNoDirectory
	}

	reply, err := s.Transact(ctx, wire.CmdCloseDir, []byte{handle})
	if err != nil {
		return err
	}

	code := reply.Result()
	if code == wire.ResultSuccess || s.opts.ClearHandleOnFailedClose {
		s.mu.Lock()
		if s.dirOpen && s.dirHandle == handle {
			s.dirOpen = false
			s.dirHandle = 0
		}
		s.mu.Unlock()
	}
	if code != wire.ResultSuccess {
		return &ResultError{Command: wire.CmdCloseDir, Code: code}
	}
	return nil
}

// MkDir creates a directory.
//
// The raw result code is returned alongside the error. A transport failure
// yields wire.ResultTransactionFailed, which never collides with a code the
// server can send.
func (s *Session) MkDir(ctx context.Context, path string) (wire.ResultCode, error) {
	return s.pathCommand(ctx, wire.CmdMkDir, path)
}

// RmDir removes an empty directory. Results are reported as for MkDir.
func (s *Session) RmDir(ctx context.Context, path string) (wire.ResultCode, error) {
	return s.pathCommand(ctx, wire.CmdRmDir, path)
}

func (s *Session) pathCommand(ctx context.Context, cmd wire.Command, path string) (wire.ResultCode, error) {
	if err := s.requireMounted(); err != nil {
		return wire.ResultTransactionFailed, err
	}

	payload, err := wire.PathPayload(path)
	if err != nil {
		return wire.ResultTransactionFailed, err
	}

	reply, err := s.Transact(ctx, cmd, payload)
	if err != nil {
		return wire.ResultTransactionFailed, err
	}
	if code := reply.Result(); code != wire.ResultSuccess {
		return code, &ResultError{Command: cmd, Code: code, Path: path}
	}
	return wire.ResultSuccess, nil
}

// Stat returns the metadata of path.
//
// Fields the server does not report are zero; a short reply is decoded as
// far as it goes.
func (s *Session) Stat(ctx context.Context, path string) (wire.Stat, error) {
	if err := s.requireMounted(); err != nil {
		return wire.Stat{}, err
	}

	payload, err := wire.PathPayload(path)
	if err != nil {
		return wire.Stat{}, err
	}

	reply, err := s.Transact(ctx, wire.CmdStat, payload)
	if err != nil {
		return wire.Stat{}, err
	}
	if code := reply.Result(); code != wire.ResultSuccess {
		return wire.Stat{}, &ResultError{Command: wire.CmdStat, Code: code, Path: path}
	}
	return wire.ParseStat(reply.Payload), nil
}

// ListDir enumerates path: OpenDir, ReadDir until end of directory, CloseDir.
// The directory is closed even when reading fails.
func (s *Session) ListDir(ctx context.Context, path string) ([]string, error) {
	if err := s.OpenDir(ctx, path); err != nil {
		return nil, err
	}

	var names []string
	var readErr error
	for {
		name, err := s.ReadDirName(ctx)
		if err != nil {
			if !IsEOF(err) {
				readErr = err
			}
			break
		}
		names = append(names, name)
	}

	closeErr := s.CloseDir(ctx)
	if readErr != nil {
		return names, readErr
	}
	return names, closeErr
}
