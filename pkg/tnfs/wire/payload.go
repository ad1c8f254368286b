package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for paths that cannot be carried as a
// NUL-terminated string.
var ErrInvalidPath = errors.New("tnfs: invalid path")

// MaxPathLen is the longest path (without its terminator) that fits in a
// single request payload.
const MaxPathLen = MaxPayloadSize - 1

// Version is a TNFS protocol version, major in the high byte and minor in
// the low byte. On the wire it travels little endian, so minor comes first.
type Version uint16

// ClientVersion is the protocol version this client announces on MOUNT.
const ClientVersion Version = 0x0102

// NewVersion builds a Version from its parts.
func NewVersion(major, minor uint8) Version {
	return Version(uint16(major)<<8 | uint16(minor))
}

func (v Version) Major() uint8 { return uint8(v >> 8) }
func (v Version) Minor() uint8 { return uint8(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// NormalizePath makes p absolute by prepending "/" when needed and truncates
// it to MaxPathLen bytes. Already absolute paths are returned unchanged.
//
// Paths containing a NUL byte are rejected: the server would see a
// different, shorter path than the caller asked for.
func NormalizePath(p string) (string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", fmt.Errorf("%w: embedded NUL in %q", ErrInvalidPath, p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > MaxPathLen {
		p = p[:MaxPathLen]
	}
	return p, nil
}

// AppendString appends s and its NUL terminator to dst.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

// PathPayload returns the NUL-terminated, normalized form of p, ready to be
// used as the payload of OPENDIR, MKDIR, RMDIR or STAT.
func PathPayload(p string) ([]byte, error) {
	norm, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	return AppendString(make([]byte, 0, len(norm)+1), norm), nil
}

// CString returns the bytes of b up to (not including) the first NUL. If
// there is no NUL, all of b is returned.
func CString(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// ============================================================================
// MOUNT
// ============================================================================

// MountRequest is the payload of a MOUNT command.
type MountRequest struct {
	Version  Version
	Path     string
	User     string
	Password string
}

// MarshalBinary encodes the request:
//
//	[version:2 LE][path NUL][user NUL][password NUL]
//
// Empty user and password are sent as bare terminators (anonymous mount).
func (r MountRequest) MarshalBinary() ([]byte, error) {
	for _, s := range []string{r.Path, r.User, r.Password} {
		if strings.IndexByte(s, 0) >= 0 {
			return nil, fmt.Errorf("%w: embedded NUL in mount field", ErrInvalidPath)
		}
	}

	n := 2 + len(r.Path) + 1 + len(r.User) + 1 + len(r.Password) + 1
	if n > MaxPayloadSize {
		return nil, fmt.Errorf("%w: mount request needs %d bytes", ErrPayloadTooLarge, n)
	}

	buf := make([]byte, 2, n)
	binary.LittleEndian.PutUint16(buf, uint16(r.Version))
	buf = AppendString(buf, r.Path)
	buf = AppendString(buf, r.User)
	buf = AppendString(buf, r.Password)
	return buf, nil
}

// MountReply is the decoded payload of a MOUNT reply.
//
// The session id is carried in the packet header, not here.
type MountReply struct {
	Result        ResultCode
	ServerVersion Version
	MinRetryMS    uint16
}

// ParseMountReply decodes a MOUNT reply payload.
//
// Failed mounts may carry only the result code (and sometimes the server
// version); missing trailing fields are left zero.
func ParseMountReply(payload []byte) MountReply {
	var r MountReply
	if len(payload) == 0 {
		r.Result = ResultProtocolError
		return r
	}
	r.Result = ResultFromByte(payload[0])
	r.ServerVersion = Version(readUint16(payload, 1))
	r.MinRetryMS = readUint16(payload, 3)
	return r
}

// ============================================================================
// Fixed-offset field access
// ============================================================================

// readUint16 reads a little endian uint16 at off, or 0 if the payload is too
// short to contain it.
func readUint16(b []byte, off int) uint16 {
	if off < 0 || off+2 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[off:])
}

// readUint32 reads a little endian uint32 at off, or 0 if the payload is too
// short to contain it.
func readUint32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}
