// Package tnfs is a TNFS client: the transaction engine, mount/session
// management and the directory and metadata operations built on them.
//
// A Session talks to one server endpoint over an injected datagram
// transport. It allows exactly one request in flight; a second concurrent
// transaction fails fast with ErrBusy instead of being queued.
//
// Typical use:
//
//	s := tnfs.NewSession(transport.ParseAddress("tnfs.example", 0), udp, tnfs.Options{})
//	if err := s.Mount(ctx, "/"); err != nil { ... }
//	defer s.Unmount(ctx)
//	st, err := s.Stat(ctx, "games/elite.atr")
package tnfs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/internal/pacer"
	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/tnfs/transport"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// State is the transaction state of a session.
type State int

const (
	// StateIdle means no request is outstanding.
	StateIdle State = iota

	// StateAwaitingReply means a request was sent and its reply (matched by
	// sequence number) has not arrived yet.
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingReply:
		return "AwaitingReply"
	default:
		return "Unknown"
	}
}

// Session is the per-mount state: negotiated parameters, the sequence
// counter and the directory handle. Sessions never share mutable state.
type Session struct {
	id      uuid.UUID
	addr    transport.Address
	dgram   transport.Datagram
	opts    Options
	clock   transport.Clock
	pacer   *pacer.Pacer
	metrics metrics.TNFSMetrics

	mu            sync.Mutex
	state         State
	awaitingSeq   uint8
	nextSeq       uint8
	sessionID     uint16
	serverVersion wire.Version
	minRetry      time.Duration
	mountPath     string
	dirHandle     uint8
	dirOpen       bool
	dirOpening    bool
}

// NewSession creates an unmounted session for addr.
//
// The datagram transport is owned by the session for the duration of each
// transaction; it must not be shared with another session concurrently.
func NewSession(addr transport.Address, dgram transport.Datagram, opts Options) *Session {
	opts.applyDefaults()
	return &Session{
		id:       uuid.New(),
		addr:     addr,
		dgram:    dgram,
		opts:     opts,
		clock:    opts.Clock,
		pacer:    pacer.New(opts.RequestsPerSecond, opts.Burst),
		metrics:  opts.Metrics,
		minRetry: opts.MinRetryInterval,
	}
}

// ID returns a process-unique identifier used to correlate log lines.
func (s *Session) ID() uuid.UUID { return s.id }

// SessionID returns the server-assigned session id, 0 when unmounted.
func (s *Session) SessionID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Mounted reports whether a session is established.
func (s *Session) Mounted() bool {
	return s.SessionID() != 0
}

// ServerVersion returns the protocol version reported on MOUNT.
func (s *Session) ServerVersion() wire.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverVersion
}

// MinRetryInterval returns the delay applied between attempts.
func (s *Session) MinRetryInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minRetry
}

// MountPath returns the path passed to the last successful Mount.
func (s *Session) MountPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mountPath
}

// DirectoryHandle returns the open directory handle, if any.
func (s *Session) DirectoryHandle() (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirHandle, s.dirOpen
}

// State returns the current transaction state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSequence returns the sequence number the next transaction will use.
func (s *Session) NextSequence() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// Mount establishes a session for path.
//
// An active session is unmounted first. That unmount is best effort: its
// failure never prevents the new MOUNT, and the local session id is zeroed
// before MOUNT is sent in any case.
//
// On a non-success result code no session is established and a
// *ResultError is returned. On a transport failure a *TransportError is
// returned.
func (s *Session) Mount(ctx context.Context, path string) error {
	if s.Mounted() {
		if err := s.Unmount(ctx); err != nil {
			logger.Debug("TNFS %s: implicit unmount before remount failed: %v", s.id, err)
		}
	}
	s.resetLocal()

	payload, err := wire.MountRequest{
		Version:  wire.ClientVersion,
		Path:     path,
		User:     s.opts.User,
		Password: s.opts.Password,
	}.MarshalBinary()
	if err != nil {
		return err
	}

	reply, err := s.Transact(ctx, wire.CmdMount, payload)
	if err != nil {
		s.metrics.RecordSessionEvent("mount_failed")
		return err
	}

	mr := wire.ParseMountReply(reply.Payload)
	if mr.Result != wire.ResultSuccess {
		s.metrics.RecordSessionEvent("mount_failed")
		return &ResultError{Command: wire.CmdMount, Code: mr.Result, Path: path}
	}
	if reply.SessionID == 0 {
		s.metrics.RecordSessionEvent("mount_failed")
		return &TransportError{
			Kind:     TransportMalformed,
			Command:  wire.CmdMount,
			Attempts: reply.Attempts,
			Err:      errors.New("server assigned session id 0"),
		}
	}

	s.mu.Lock()
	s.sessionID = reply.SessionID
	s.serverVersion = mr.ServerVersion
	s.minRetry = max(time.Duration(mr.MinRetryMS)*time.Millisecond, s.opts.MinRetryInterval)
	s.mountPath = path
	s.mu.Unlock()

	s.metrics.RecordSessionEvent("mount")
	logger.Info("TNFS %s: mounted %s%s session=0x%04x server=%s min_retry=%s",
		s.id, s.addr, path, reply.SessionID, mr.ServerVersion, s.MinRetryInterval())
	return nil
}

// Unmount ends the session.
//
// Local state (session id and directory handle) is cleared once the
// transaction completes, whatever result the server reports, and also when
// the transaction fails at the transport level. The server's answer is still
// returned so callers can log it.
func (s *Session) Unmount(ctx context.Context) error {
	if !s.Mounted() {
		return ErrNotMounted
	}

	reply, err := s.Transact(ctx, wire.CmdUnmount, nil)
	if errors.Is(err, ErrBusy) {
		return err
	}
	s.resetLocal()
	s.metrics.RecordSessionEvent("unmount")

	if err != nil {
		logger.Warn("TNFS %s: unmount failed, local session dropped: %v", s.id, err)
		return err
	}
	if code := reply.Result(); code != wire.ResultSuccess {
		logger.Warn("TNFS %s: server rejected unmount (%s), local session dropped", s.id, code)
		return &ResultError{Command: wire.CmdUnmount, Code: code}
	}

	logger.Info("TNFS %s: unmounted %s", s.id, s.addr)
	return nil
}

// resetLocal drops the session id and directory handle. Negotiated timing
// falls back to the configured defaults.
func (s *Session) resetLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = 0
	s.serverVersion = 0
	s.minRetry = s.opts.MinRetryInterval
	s.mountPath = ""
	s.dirHandle = 0
	s.dirOpen = false
	s.dirOpening = false
}

func (s *Session) requireMounted() error {
	if !s.Mounted() {
		return ErrNotMounted
	}
	return nil
}
