package tnfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/netfs/internal/bufpool"
	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
)

// packetBuffers recycles send and receive buffers across all sessions.
var packetBuffers = bufpool.New(wire.MaxPacketSize)

// Reply is the matching reply to a transaction.
type Reply struct {
	wire.Header

	// Payload is owned by the caller.
	Payload []byte

	// Attempts is the number of sends made, including the successful one.
	Attempts int
}

// Result returns the result code in the first payload byte.
func (r *Reply) Result() wire.ResultCode {
	p := wire.Packet{Header: r.Header, Payload: r.Payload}
	return p.Result()
}

// Transact sends one request and waits for the reply carrying the same
// sequence number.
//
// The session's current id and the next sequence number are stamped on the
// request; the counter advances whatever the outcome. Each attempt sends the
// request and waits up to Options.Timeout for a matching reply. Replies with
// another sequence number (stale retransmissions, late replies) are dropped
// and waiting continues within the same attempt. A failed send, and a
// matching reply that is incomplete (see wire.ReplyComplete), count as a
// failed attempt. Between attempts the session waits MinRetryInterval; no
// delay precedes the first attempt.
//
// When every attempt fails a *TransportError of kind TransportExhausted is
// returned. ctx is checked before each attempt and while waiting.
//
// A non-success result code in the reply is not an error at this level;
// callers inspect Reply.Result.
func (s *Session) Transact(ctx context.Context, cmd wire.Command, payload []byte) (*Reply, error) {
	if len(payload) > wire.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %s payload is %d bytes", ErrPayloadTooLarge, cmd, len(payload))
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return nil, &TransportError{Kind: TransportCancelled, Command: cmd, Err: err}
	}

	header, minRetry, err := s.begin(cmd)
	if err != nil {
		return nil, err
	}
	defer s.end()

	start := s.clock.Now()
	reply, attempts, err := s.run(ctx, header, payload, minRetry)
	s.metrics.RecordTransaction(cmd.String(), s.clock.Now().Sub(start), attempts, err)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordResult(cmd.String(), reply.Result().String())
	return reply, nil
}

// begin moves the session from Idle to AwaitingReply and allocates the
// sequence number.
func (s *Session) begin(cmd wire.Command) (wire.Header, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return wire.Header{}, 0, fmt.Errorf("%w: %s while awaiting seq %d", ErrBusy, cmd, s.awaitingSeq)
	}

	h := wire.Header{SessionID: s.sessionID, Sequence: s.nextSeq, Command: cmd}
	s.nextSeq++
	s.state = StateAwaitingReply
	s.awaitingSeq = h.Sequence
	return h, s.minRetry, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context, h wire.Header, payload []byte, minRetry time.Duration) (*Reply, int, error) {
	sendBuf := packetBuffers.Get()
	defer packetBuffers.Put(sendBuf)
	recvBuf := packetBuffers.Get()
	defer packetBuffers.Put(recvBuf)

	n, err := wire.Encode(sendBuf, h, payload)
	if err != nil {
		return nil, 0, err
	}
	pkt := sendBuf[:n]
	cmd := h.Command.String()

	var lastErr error
	attempts := 0
	for attempts < s.opts.MaxRetries {
		if attempts > 0 {
			s.clock.Sleep(minRetry)
		}
		if err := ctx.Err(); err != nil {
			return nil, attempts, &TransportError{Kind: TransportCancelled, Command: h.Command, Attempts: attempts, Err: err}
		}
		attempts++

		debugPacket(">>", s, h, payload)
		if err := s.dgram.Send(s.addr, pkt); err != nil {
			logger.Debug("TNFS %s: send %s seq=%d failed, retrying: %v", s.id, h.Command, h.Sequence, err)
			s.metrics.RecordRetry(cmd, metrics.RetrySendFailure)
			lastErr = &TransportError{Kind: TransportSendFailed, Command: h.Command, Attempts: attempts, Err: err}
			continue
		}

		reply, err := s.await(ctx, h, recvBuf)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) && te.Kind == TransportCancelled {
				te.Attempts = attempts
				return nil, attempts, te
			}
			reason := metrics.RetryTimeout
			if errors.As(err, &te) && te.Kind == TransportMalformed {
				reason = metrics.RetryMalformed
			}
			s.metrics.RecordRetry(cmd, reason)
			lastErr = err
			continue
		}

		reply.Attempts = attempts
		return reply, attempts, nil
	}

	logger.Warn("TNFS %s: %s seq=%d to %s gave up after %d attempts", s.id, h.Command, h.Sequence, s.addr, attempts)
	return nil, attempts, &TransportError{Kind: TransportExhausted, Command: h.Command, Attempts: attempts, Err: lastErr}
}

// await polls for the reply to h until the attempt's timeout elapses.
func (s *Session) await(ctx context.Context, h wire.Header, buf []byte) (*Reply, error) {
	deadline := s.clock.Now().Add(s.opts.Timeout)
	malformed := false

	for {
		if s.dgram.Poll() {
			n, err := s.dgram.Receive(buf)
			if err != nil {
				logger.Debug("TNFS %s: receive failed: %v", s.id, err)
			} else if pkt, err := wire.Decode(buf[:n]); err != nil {
				logger.Debug("TNFS %s: dropping undecodable datagram: %v", s.id, err)
				malformed = true
			} else {
				debugPacket("<<", s, pkt.Header, pkt.Payload)
				if pkt.Sequence == h.Sequence {
					if !wire.ReplyComplete(h.Command, pkt.Payload) {
						logger.Debug("TNFS %s: %s seq=%d reply is incomplete (%d payload bytes)", s.id, h.Command, h.Sequence, len(pkt.Payload))
						return nil, &TransportError{Kind: TransportMalformed, Command: h.Command}
					}
					return &Reply{
						Header:  pkt.Header,
						Payload: append([]byte(nil), pkt.Payload...),
					}, nil
				}
				logger.Debug("TNFS %s: out of order reply seq=%d, awaiting %d", s.id, pkt.Sequence, h.Sequence)
				s.metrics.RecordDiscardedReply(h.Command.String())
			}
		}

		if !s.clock.Now().Before(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Kind: TransportCancelled, Command: h.Command, Err: err}
		}
		s.clock.Yield()
	}

	logger.Debug("TNFS %s: %s seq=%d timed out after %s", s.id, h.Command, h.Sequence, s.opts.Timeout)
	if malformed {
		return nil, &TransportError{Kind: TransportMalformed, Command: h.Command}
	}
	return nil, &TransportError{Kind: TransportTimeout, Command: h.Command}
}

// debugPacket logs a hex dump of a packet at DEBUG level.
func debugPacket(dir string, s *Session, h wire.Header, payload []byte) {
	if !logger.IsDebug() {
		return
	}
	if dir == "<<" && len(payload) > 0 {
		r := wire.ResultFromByte(payload[0])
		logger.Debug("TNFS %s %s RX len=%d result=%s %s % x", s.id, dir, len(payload), r, h, payload)
		return
	}
	logger.Debug("TNFS %s %s TX len=%d %s % x", s.id, dir, len(payload), h, payload)
}
