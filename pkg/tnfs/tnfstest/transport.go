package tnfstest

import (
	"errors"
	"sync"

	"github.com/marmos91/netfs/pkg/tnfs/transport"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// ErrSendFailed is returned by Transport.Send for sends scripted to fail.
var ErrSendFailed = errors.New("tnfstest: scripted send failure")

// Handler produces the raw reply datagrams for a request. Returning nil
// means the server stays silent.
type Handler func(req wire.Packet) [][]byte

// Transport is an in-memory transport.Datagram. Every sent packet is handed
// to Handler and its replies are queued for Poll/Receive, subject to the
// scripted faults.
type Transport struct {
	mu      sync.Mutex
	handler Handler
	queue   [][]byte
	sent    []wire.Packet
	targets []transport.Address

	failSends   int
	dropReplies int
}

// NewTransport returns a transport answering with h.
func NewTransport(h Handler) *Transport {
	return &Transport{handler: h}
}

// FailSends makes the next n sends fail.
func (t *Transport) FailSends(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failSends = n
}

// DropReplies discards the replies to the next n delivered requests.
func (t *Transport) DropReplies(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropReplies = n
}

// Inject queues a raw datagram as if it had arrived from the network.
func (t *Transport) Inject(raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, append([]byte(nil), raw...))
}

// Sent returns copies of every packet passed to Send, including failed ones.
func (t *Transport) Sent() []wire.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wire.Packet(nil), t.sent...)
}

// Targets returns the address of every Send call.
func (t *Transport) Targets() []transport.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.Address(nil), t.targets...)
}

func (t *Transport) Send(addr transport.Address, pkt []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, err := wire.Decode(append([]byte(nil), pkt...))
	if err != nil {
		return err
	}
	t.sent = append(t.sent, req)
	t.targets = append(t.targets, addr)

	if t.failSends > 0 {
		t.failSends--
		return ErrSendFailed
	}
	if t.handler == nil {
		return nil
	}

	replies := t.handler(req)
	if t.dropReplies > 0 {
		t.dropReplies--
		return nil
	}
	for _, r := range replies {
		t.queue = append(t.queue, append([]byte(nil), r...))
	}
	return nil
}

func (t *Transport) Poll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue) > 0
}

func (t *Transport) Receive(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return 0, errors.New("tnfstest: no datagram pending")
	}
	next := t.queue[0]
	t.queue = t.queue[1:]
	return copy(buf, next), nil
}

// Reply encodes a reply to req carrying payload, with the session id taken
// from req.
func Reply(req wire.Packet, payload ...byte) []byte {
	return ReplyWith(req.Header, payload)
}

// ReplyWith encodes a datagram with an explicit header.
func ReplyWith(h wire.Header, payload []byte) []byte {
	buf := make([]byte, wire.EncodedLen(len(payload)))
	if _, err := wire.Encode(buf, h, payload); err != nil {
		panic(err)
	}
	return buf
}
