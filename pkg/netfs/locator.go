package netfs

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Default ports applied when a locator does not name one.
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
	DefaultTNFSPort  = 16384
)

// DefaultPort returns the well known port of scheme, or 0.
func DefaultPort(scheme string) uint16 {
	switch strings.ToLower(scheme) {
	case "http":
		return DefaultHTTPPort
	case "https":
		return DefaultHTTPSPort
	case "tnfs":
		return DefaultTNFSPort
	default:
		return 0
	}
}

// Locator is a parsed resource locator: scheme://[user[:password]@]host[:port]/path[?query].
type Locator struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	Query    string
	User     string
	Password string
}

// ParseLocator parses raw. The scheme is lower-cased, the scheme's default
// port is filled in and the path always starts with "/".
//
// A device prefix such as "N:" or "N1:" in front of the scheme is stripped.
func ParseLocator(raw string) (*Locator, error) {
	raw = TrimDevicespec(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDevicespec)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevicespec, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q needs scheme and host", ErrInvalidDevicespec, raw)
	}

	loc := &Locator{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Path:   u.Path,
		Query:  u.RawQuery,
	}
	if u.User != nil {
		loc.User = u.User.Username()
		loc.Password, _ = u.User.Password()
	}

	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalidDevicespec, p)
		}
		loc.Port = uint16(port)
	} else {
		loc.Port = DefaultPort(loc.Scheme)
	}

	if !strings.HasPrefix(loc.Path, "/") {
		loc.Path = "/" + loc.Path
	}
	return loc, nil
}

// HostPort returns host:port.
func (l *Locator) HostPort() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(int(l.Port)))
}

// String renders the locator without credentials.
func (l *Locator) String() string {
	s := l.Scheme + "://" + l.HostPort() + l.Path
	if l.Query != "" {
		s += "?" + l.Query
	}
	return s
}

// WithPath returns a copy of l naming p instead. Relative paths are
// resolved against the directory of l.Path.
func (l *Locator) WithPath(p string) *Locator {
	c := *l
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(l.Path), p)
	}
	c.Path = p
	c.Query = ""
	return &c
}

// SameEndpoint reports whether l and o address the same server session.
func (l *Locator) SameEndpoint(o *Locator) bool {
	return o != nil &&
		l.Scheme == o.Scheme &&
		strings.EqualFold(l.Host, o.Host) &&
		l.Port == o.Port &&
		l.User == o.User &&
		l.Password == o.Password
}

// EOL is the Atari end-of-line byte devicespecs are terminated with.
const EOL = 0x9B

// TrimDevicespec cuts s at the first EOL, NUL, CR or LF and strips a
// leading device prefix ("N:", "N1:").
func TrimDevicespec(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == EOL || c == 0 || c == '\r' || c == '\n' {
			s = s[:i]
			break
		}
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == 'N' || s[0] == 'n') {
		switch {
		case s[1] == ':':
			s = s[2:]
		case len(s) >= 3 && s[1] >= '1' && s[1] <= '8' && s[2] == ':':
			s = s[3:]
		}
	}
	return s
}
