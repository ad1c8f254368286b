package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/marmos91/netfs/internal/logger"
)

// UDP is a Datagram backed by an unconnected UDP socket.
//
// Hostnames are resolved on every Send so a server that moves is picked up
// on the next retry. Replies from any source are accepted; correlation is
// the engine's job (by sequence number).
type UDP struct {
	conn *net.UDPConn

	// pollWait bounds how long Poll waits on the socket.
	pollWait time.Duration

	mu      sync.Mutex
	pending []byte
	hasData bool
	readBuf []byte
}

// ListenUDP opens a UDP socket on an ephemeral local port.
//
// Parameters:
//   - pollWait: maximum time a single Poll call blocks (0 means 1ms)
func ListenUDP(pollWait time.Duration) (*UDP, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return NewUDP(conn, pollWait), nil
}

// NewUDP wraps an existing socket.
func NewUDP(conn *net.UDPConn, pollWait time.Duration) *UDP {
	if pollWait <= 0 {
		pollWait = time.Millisecond
	}
	return &UDP{
		conn:     conn,
		pollWait: pollWait,
		readBuf:  make([]byte, 64*1024),
	}
}

// LocalAddr returns the bound local address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Send resolves addr and writes pkt as a single datagram.
func (u *UDP) Send(addr Address, pkt []byte) error {
	if err := addr.Validate(); err != nil {
		return err
	}

	var target netip.AddrPort
	if addr.IP.IsValid() {
		target = netip.AddrPortFrom(addr.IP, addr.Port)
	} else {
		resolved, err := net.ResolveUDPAddr("udp", addr.String())
		if err != nil {
			return fmt.Errorf("resolve %s: %w", addr, err)
		}
		target = resolved.AddrPort()
	}

	n, err := u.conn.WriteToUDPAddrPort(pkt, target)
	if err != nil {
		return fmt.Errorf("send to %s: %w", target, err)
	}
	if n != len(pkt) {
		return fmt.Errorf("send to %s: short write %d of %d bytes", target, n, len(pkt))
	}
	return nil
}

// Poll waits at most pollWait for a datagram and buffers it.
func (u *UDP) Poll() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.hasData {
		return true
	}

	if err := u.conn.SetReadDeadline(time.Now().Add(u.pollWait)); err != nil {
		logger.Debug("UDP set read deadline failed: %v", err)
		return false
	}

	n, _, err := u.conn.ReadFromUDPAddrPort(u.readBuf)
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			logger.Debug("UDP read failed: %v", err)
		}
		return false
	}

	u.pending = u.readBuf[:n]
	u.hasData = true
	return true
}

// Receive copies the buffered datagram into buf.
func (u *UDP) Receive(buf []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.hasData {
		return 0, errors.New("udp: no datagram pending")
	}
	n := copy(buf, u.pending)
	u.pending = nil
	u.hasData = false
	return n, nil
}

// Close releases the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
