// Package tnfs adapts a TNFS session to the netfs Backend contract.
//
// TNFS is session based: Mount performs the MOUNT handshake against the
// locator's host and Unmount tears the session down. Directory listing,
// stat, mkdir and rmdir map onto the corresponding TNFS commands; file I/O
// is not part of the supported command set. Session errors are returned
// wrapped in the matching netfs error.
package tnfs

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
	client "github.com/marmos91/netfs/pkg/tnfs"
	"github.com/marmos91/netfs/pkg/tnfs/transport"
)

// Scheme is the locator scheme served by this backend.
const Scheme = "tnfs"

// Dialer opens the datagram socket a session sends through. If the
// returned Datagram also implements io.Closer it is closed on Unmount.
type Dialer func(ctx context.Context) (transport.Datagram, error)

// DialUDP is the default Dialer: an unconnected UDP socket on an ephemeral
// port.
func DialUDP(ctx context.Context) (transport.Datagram, error) {
	return transport.ListenUDP(time.Millisecond)
}

// Config configures a Backend.
type Config struct {
	// Session is the retry and pacing policy of each mount. Credentials in
	// the locator override Session.User and Session.Password.
	Session client.Options

	// MountPath is the server side path mounted. Default: "/".
	MountPath string

	// Dial opens the socket. Default: DialUDP.
	Dial Dialer
}

// Backend serves tnfs:// locators.
//
// Thread safety:
// A Backend belongs to one FS and is not safe for concurrent use.
type Backend struct {
	cfg     Config
	session *client.Session
	dgram   transport.Datagram
}

var (
	_ netfs.Backend    = (*Backend)(nil)
	_ netfs.Stater     = (*Backend)(nil)
	_ netfs.DirMaker   = (*Backend)(nil)
	_ netfs.DirRemover = (*Backend)(nil)
)

// New creates an unmounted backend.
func New(cfg Config) *Backend {
	if cfg.MountPath == "" {
		cfg.MountPath = "/"
	}
	if cfg.Dial == nil {
		cfg.Dial = DialUDP
	}
	return &Backend{cfg: cfg}
}

// Factory returns a netfs.Factory creating backends from cfg.
func Factory(cfg Config) netfs.Factory {
	return func(*netfs.Locator) (netfs.Backend, error) {
		return New(cfg), nil
	}
}

func (b *Backend) Scheme() string { return Scheme }

// Session returns the active session, or nil before Mount.
func (b *Backend) Session() *client.Session { return b.session }

// Mount establishes a session with the locator's server. An existing
// session is unmounted first.
func (b *Backend) Mount(ctx context.Context, loc *netfs.Locator) error {
	if b.session != nil {
		if err := b.Unmount(ctx); err != nil {
			logger.Debug("tnfs backend: unmount before mount failed: %v", err)
		}
	}

	addr := transport.ParseAddress(loc.Host, loc.Port)
	if err := addr.Validate(); err != nil {
		return fmt.Errorf("%w: %v", netfs.ErrInvalidDevicespec, err)
	}

	dgram, err := b.cfg.Dial(ctx)
	if err != nil {
		return fmt.Errorf("tnfs backend: dial: %w", err)
	}

	opts := b.cfg.Session
	if loc.User != "" {
		opts.User = loc.User
		opts.Password = loc.Password
	}

	s := client.NewSession(addr, dgram, opts)
	if err := s.Mount(ctx, b.cfg.MountPath); err != nil {
		closeDatagram(dgram)
		return mapError(err)
	}

	logger.Info("tnfs backend: mounted %s%s (session 0x%04x, server %s)",
		addr, b.cfg.MountPath, s.SessionID(), s.ServerVersion())
	b.session = s
	b.dgram = dgram
	return nil
}

// Unmount ends the session and releases the socket. Local state is cleared
// even when the server rejects the unmount.
func (b *Backend) Unmount(ctx context.Context) error {
	if b.session == nil {
		return nil
	}
	err := b.session.Unmount(ctx)
	closeDatagram(b.dgram)
	b.session = nil
	b.dgram = nil
	return mapError(err)
}

func closeDatagram(d transport.Datagram) {
	if c, ok := d.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Debug("tnfs backend: close socket: %v", err)
		}
	}
}

// OpenFile is not supported: the session only carries directory and
// metadata commands.
func (b *Backend) OpenFile(ctx context.Context, p string, mode netfs.OpenMode) (netfs.File, error) {
	return nil, fmt.Errorf("tnfs backend: open %s (%s): %w", p, mode, netfs.ErrNotImplemented)
}

// ReadDir lists p and stats every entry. Entries whose stat is rejected by
// the server are still listed, without metadata.
func (b *Backend) ReadDir(ctx context.Context, p string) ([]netfs.FileInfo, error) {
	entries, err := b.readDir(ctx, p)
	return entries, mapError(err)
}

func (b *Backend) readDir(ctx context.Context, p string) ([]netfs.FileInfo, error) {
	s, err := b.active()
	if err != nil {
		return nil, err
	}

	names, err := s.ListDir(ctx, p)
	if err != nil {
		return nil, err
	}

	entries := make([]netfs.FileInfo, 0, len(names))
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		info, err := b.stat(ctx, s, path.Join(p, name))
		if err != nil {
			if client.IsTransport(err) {
				return nil, err
			}
			logger.Debug("tnfs backend: stat %s: %v", path.Join(p, name), err)
			info = netfs.FileInfo{}
		}
		info.Name = name
		entries = append(entries, info)
	}
	return entries, nil
}

// Stat returns the metadata of p.
func (b *Backend) Stat(ctx context.Context, p string) (netfs.FileInfo, error) {
	s, err := b.active()
	if err != nil {
		return netfs.FileInfo{}, mapError(err)
	}
	info, err := b.stat(ctx, s, p)
	return info, mapError(err)
}

func (b *Backend) stat(ctx context.Context, s *client.Session, p string) (netfs.FileInfo, error) {
	st, err := s.Stat(ctx, p)
	if err != nil {
		return netfs.FileInfo{}, err
	}
	return netfs.FileInfo{
		Name:    path.Base(p),
		Size:    int64(st.Size),
		IsDir:   st.IsDir(),
		ModTime: st.ModTime(),
	}, nil
}

// MkDir creates directory p.
func (b *Backend) MkDir(ctx context.Context, p string) error {
	s, err := b.active()
	if err != nil {
		return mapError(err)
	}
	_, err = s.MkDir(ctx, p)
	return mapError(err)
}

// RmDir removes the empty directory p.
func (b *Backend) RmDir(ctx context.Context, p string) error {
	s, err := b.active()
	if err != nil {
		return mapError(err)
	}
	_, err = s.RmDir(ctx, p)
	return mapError(err)
}

func (b *Backend) active() (*client.Session, error) {
	if b.session == nil {
		return nil, client.ErrNotMounted
	}
	return b.session, nil
}
