package tnfstest

import (
	"context"
	"errors"
	"net"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// Server is an in-memory TNFS server implementing MOUNT, UMOUNT, OPENDIR,
// READDIR, CLOSEDIR, MKDIR, RMDIR and STAT over a tree of directories and
// files. It is safe for concurrent use.
type Server struct {
	// SessionID is assigned on MOUNT. Default 0xBEEF.
	SessionID uint16

	// Version is reported on MOUNT. Default 2.6.
	Version wire.Version

	// MinRetryMS is reported on MOUNT.
	MinRetryMS uint16

	// MountResult, when non-zero, makes MOUNT fail with that code.
	MountResult wire.ResultCode

	// CloseDirResult, when non-zero, makes CLOSEDIR fail with that code.
	CloseDirResult wire.ResultCode

	// UnmountResult, when non-zero, makes UMOUNT fail with that code.
	UnmountResult wire.ResultCode

	mu         sync.Mutex
	nodes      map[string]*node
	handles    map[uint8]*cursor
	nextHandle uint8
	mounted    map[uint16]string
	mounts     []wire.MountRequest
}

type node struct {
	dir   bool
	size  uint32
	mtime uint32
}

type cursor struct {
	entries []string
	pos     int
}

// NewServer returns a server exporting an empty root directory.
func NewServer() *Server {
	return &Server{
		SessionID:  0xBEEF,
		Version:    wire.NewVersion(2, 6),
		nodes:      map[string]*node{"/": {dir: true}},
		handles:    make(map[uint8]*cursor),
		nextHandle: 1,
		mounted:    make(map[uint16]string),
	}
}

// AddDir creates a directory and its missing parents.
func (s *Server) AddDir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(clean(p), &node{dir: true})
}

// AddFile creates a file of the given size and its missing parents.
func (s *Server) AddFile(p string, size uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(clean(p), &node{size: size, mtime: 1700000000})
}

func (s *Server) addLocked(p string, n *node) {
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		if _, ok := s.nodes[dir]; !ok {
			s.nodes[dir] = &node{dir: true}
		}
	}
	s.nodes[p] = n
}

// Exists reports whether p is present.
func (s *Server) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[clean(p)]
	return ok
}

// Mounts returns every MOUNT request received.
func (s *Server) Mounts() []wire.MountRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.MountRequest(nil), s.mounts...)
}

// ActiveSessions returns the number of sessions not yet unmounted.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mounted)
}

// OpenHandles returns the number of directory handles not yet closed.
func (s *Server) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Handle answers a single request. It satisfies Handler.
func (s *Server) Handle(req wire.Packet) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Command {
	case wire.CmdMount:
		return s.mount(req)
	case wire.CmdUnmount:
		code := s.UnmountResult
		if code == wire.ResultSuccess {
			if _, ok := s.mounted[req.SessionID]; !ok {
				code = wire.ResultInvalidHandle
			}
			delete(s.mounted, req.SessionID)
		}
		return s.result(req, code)
	}

	if _, ok := s.mounted[req.SessionID]; !ok {
		return s.result(req, wire.ResultInvalidHandle)
	}

	switch req.Command {
	case wire.CmdOpenDir:
		return s.openDir(req)
	case wire.CmdReadDir:
		return s.readDir(req)
	case wire.CmdCloseDir:
		return s.closeDir(req)
	case wire.CmdMkDir:
		return s.mkDir(req)
	case wire.CmdRmDir:
		return s.rmDir(req)
	case wire.CmdStat:
		return s.stat(req)
	default:
		return s.result(req, wire.ResultUnimplemented)
	}
}

func (s *Server) mount(req wire.Packet) [][]byte {
	mr := parseMountRequest(req.Payload)
	s.mounts = append(s.mounts, mr)

	h := req.Header
	if s.MountResult != wire.ResultSuccess {
		h.SessionID = 0
		return [][]byte{ReplyWith(h, []byte{byte(s.MountResult), s.Version.Minor(), s.Version.Major()})}
	}

	h.SessionID = s.SessionID
	s.mounted[s.SessionID] = mr.Path
	return [][]byte{ReplyWith(h, []byte{
		byte(wire.ResultSuccess),
		s.Version.Minor(), s.Version.Major(),
		byte(s.MinRetryMS), byte(s.MinRetryMS >> 8),
	})}
}

func (s *Server) openDir(req wire.Packet) [][]byte {
	p := clean(string(wire.CString(req.Payload)))
	n, ok := s.nodes[p]
	if !ok {
		return s.result(req, wire.ResultNotFound)
	}
	if !n.dir {
		return s.result(req, wire.ResultNotADirectory)
	}

	h := s.nextHandle
	s.nextHandle++
	s.handles[h] = &cursor{entries: s.childrenLocked(p)}
	return [][]byte{Reply(req, byte(wire.ResultSuccess), h)}
}

func (s *Server) readDir(req wire.Packet) [][]byte {
	if len(req.Payload) < 1 {
		return s.result(req, wire.ResultInvalidArgument)
	}
	c, ok := s.handles[req.Payload[0]]
	if !ok {
		return s.result(req, wire.ResultBadHandle)
	}
	if c.pos >= len(c.entries) {
		return s.result(req, wire.ResultEndOfFile)
	}
	name := c.entries[c.pos]
	c.pos++
	return [][]byte{Reply(req, wire.AppendString([]byte{byte(wire.ResultSuccess)}, name)...)}
}

func (s *Server) closeDir(req wire.Packet) [][]byte {
	if s.CloseDirResult != wire.ResultSuccess {
		return s.result(req, s.CloseDirResult)
	}
	if len(req.Payload) < 1 {
		return s.result(req, wire.ResultInvalidArgument)
	}
	if _, ok := s.handles[req.Payload[0]]; !ok {
		return s.result(req, wire.ResultBadHandle)
	}
	delete(s.handles, req.Payload[0])
	return s.result(req, wire.ResultSuccess)
}

func (s *Server) mkDir(req wire.Packet) [][]byte {
	p := clean(string(wire.CString(req.Payload)))
	if _, ok := s.nodes[p]; ok {
		return s.result(req, wire.ResultExists)
	}
	parent, ok := s.nodes[path.Dir(p)]
	if !ok {
		return s.result(req, wire.ResultNotFound)
	}
	if !parent.dir {
		return s.result(req, wire.ResultNotADirectory)
	}
	s.nodes[p] = &node{dir: true}
	return s.result(req, wire.ResultSuccess)
}

func (s *Server) rmDir(req wire.Packet) [][]byte {
	p := clean(string(wire.CString(req.Payload)))
	n, ok := s.nodes[p]
	if !ok {
		return s.result(req, wire.ResultNotFound)
	}
	if !n.dir {
		return s.result(req, wire.ResultNotADirectory)
	}
	if p == "/" || len(s.childrenLocked(p)) > 0 {
		return s.result(req, wire.ResultNotEmpty)
	}
	delete(s.nodes, p)
	return s.result(req, wire.ResultSuccess)
}

func (s *Server) stat(req wire.Packet) [][]byte {
	p := clean(string(wire.CString(req.Payload)))
	n, ok := s.nodes[p]
	if !ok {
		return s.result(req, wire.ResultNotFound)
	}
	st := wire.Stat{Mode: wire.ModeRegular | 0o644, Size: n.size, MTime: n.mtime, ATime: n.mtime, CTime: n.mtime}
	if n.dir {
		st.Mode = wire.ModeDir | 0o755
	}
	return [][]byte{Reply(req, wire.MarshalStat(st)...)}
}

func (s *Server) childrenLocked(dir string) []string {
	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var names []string
	for p := range s.nodes {
		if p == dir || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) result(req wire.Packet, code wire.ResultCode) [][]byte {
	return [][]byte{Reply(req, byte(code))}
}

func clean(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func parseMountRequest(payload []byte) wire.MountRequest {
	var mr wire.MountRequest
	if len(payload) < 2 {
		return mr
	}
	mr.Version = wire.Version(uint16(payload[0]) | uint16(payload[1])<<8)
	fields := strings.SplitN(string(payload[2:]), "\x00", 4)
	if len(fields) > 0 {
		mr.Path = fields[0]
	}
	if len(fields) > 1 {
		mr.User = fields[1]
	}
	if len(fields) > 2 {
		mr.Password = fields[2]
	}
	return mr
}

// ServeUDP answers requests arriving on conn until ctx is cancelled or the
// connection fails.
func (s *Server) ServeUDP(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
			return err
		}
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		req, err := wire.Decode(append([]byte(nil), buf[:n]...))
		if err != nil {
			continue
		}
		for _, reply := range s.Handle(req) {
			if _, err := conn.WriteTo(reply, from); err != nil {
				return err
			}
		}
	}
}
