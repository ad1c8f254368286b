// Package transport defines the collaborators the TNFS engine consumes: a
// datagram socket and a clock. Real implementations for UDP and the system
// clock live here too; test doubles live in pkg/tnfs/tnfstest.
package transport

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// DefaultPort is the well known TNFS UDP port.
const DefaultPort = 16384

// Address identifies a TNFS server. A resolved numeric address, when known,
// always takes precedence over the hostname.
type Address struct {
	IP       netip.Addr
	Hostname string
	Port     uint16
}

// ParseAddress builds an Address from a host string that may be a literal IP
// or a hostname.
func ParseAddress(host string, port uint16) Address {
	if port == 0 {
		port = DefaultPort
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return Address{IP: ip, Port: port}
	}
	return Address{Hostname: host, Port: port}
}

// Host returns the host part used to reach the server: the numeric address
// if set, the hostname otherwise.
func (a Address) Host() string {
	if a.IP.IsValid() {
		return a.IP.String()
	}
	return a.Hostname
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.Port)))
}

// Validate reports whether the address can be used to send datagrams.
func (a Address) Validate() error {
	if !a.IP.IsValid() && a.Hostname == "" {
		return fmt.Errorf("transport: address has neither IP nor hostname")
	}
	if a.Port == 0 {
		return fmt.Errorf("transport: address %q has no port", a.Host())
	}
	return nil
}

// Datagram is an unreliable, unordered datagram socket.
//
// Send transmits one complete datagram to addr. A failed send is not fatal
// to the caller; the TNFS engine logs it and retries.
//
// Poll reports whether a datagram is waiting to be received. It must not
// block for longer than a scheduling quantum.
//
// Receive copies the next waiting datagram into buf and returns its length.
// Datagrams longer than buf are truncated.
//
// A Datagram is exclusively owned by one mount for the duration of a
// transaction and need not be safe for concurrent use.
type Datagram interface {
	Send(addr Address, pkt []byte) error
	Poll() bool
	Receive(buf []byte) (int, error)
}

// Clock supplies time and cooperative suspension to the engine.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Yield gives other work a chance to run while polling for a reply.
	Yield()

	// Sleep suspends for d. Used for the inter-retry delay.
	Sleep(d time.Duration)
}

// SystemClock is the Clock backed by the runtime.
type SystemClock struct {
	// PollInterval is how long Yield sleeps. Zero means 1ms.
	PollInterval time.Duration
}

func (SystemClock) Now() time.Time { return time.Now() }

func (c SystemClock) Yield() {
	d := c.PollInterval
	if d <= 0 {
		d = time.Millisecond
	}
	time.Sleep(d)
}

func (SystemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
