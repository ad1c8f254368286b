// Package wire implements the TNFS datagram format.
//
// Every TNFS message, request or reply, starts with the same fixed header:
//
//	offset  size  field
//	0       2     session id (little endian)
//	2       1     sequence number
//	3       1     command
//	4..     n     command specific payload
//
// The package has no state. Encoding writes into caller supplied buffers and
// never grows them past MaxPacketSize; decoding never reads past the bytes
// actually received.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the fixed TNFS header in bytes.
	HeaderSize = 4

	// MaxPayloadSize is the largest payload carried by a single datagram.
	MaxPayloadSize = 512

	// MaxPacketSize is the largest datagram (header + payload) ever sent or
	// accepted.
	MaxPacketSize = HeaderSize + MaxPayloadSize
)

var (
	// ErrShortPacket is returned when a datagram is smaller than the header.
	ErrShortPacket = errors.New("tnfs: packet shorter than header")

	// ErrPayloadTooLarge is returned when header + payload would exceed
	// MaxPacketSize.
	ErrPayloadTooLarge = errors.New("tnfs: payload exceeds maximum datagram size")

	// ErrBufferTooSmall is returned when the destination buffer cannot hold
	// the encoded packet.
	ErrBufferTooSmall = errors.New("tnfs: destination buffer too small")
)

// Header is the fixed part shared by every request and reply.
type Header struct {
	SessionID uint16
	Sequence  uint8
	Command   Command
}

// Packet is a decoded datagram. Payload aliases the buffer it was decoded
// from and is only valid until that buffer is reused.
type Packet struct {
	Header
	Payload []byte
}

// ReplyComplete reports whether payload is a usable reply to cmd: it holds a
// result byte and, when that byte is success, every field cmd always
// returns. Incomplete replies are malformed datagrams, not server answers.
func ReplyComplete(cmd Command, payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	if ResultFromByte(payload[0]) == ResultSuccess {
		return len(payload) >= cmd.MinSuccessReply()
	}
	return true
}

// Result returns the result code carried in the first payload byte, or
// ResultProtocolError for a payload without one (see ReplyComplete).
func (p *Packet) Result() ResultCode {
	if len(p.Payload) == 0 {
		return ResultProtocolError
	}
	return ResultFromByte(p.Payload[0])
}

// String renders the header for log lines.
func (h Header) String() string {
	return fmt.Sprintf("[%04x %02x %s]", h.SessionID, h.Sequence, h.Command)
}

// EncodedLen returns the number of bytes Encode will produce for a payload of
// the given length.
func EncodedLen(payloadLen int) int {
	return HeaderSize + payloadLen
}

// Encode writes header and payload into dst and returns the number of bytes
// written.
//
// dst must be at least EncodedLen(len(payload)) bytes long. The payload is
// rejected if the resulting packet would exceed MaxPacketSize.
func Encode(dst []byte, h Header, payload []byte) (int, error) {
	if len(payload) > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	n := EncodedLen(len(payload))
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(dst))
	}

	binary.LittleEndian.PutUint16(dst[0:2], h.SessionID)
	dst[2] = h.Sequence
	dst[3] = byte(h.Command)
	copy(dst[HeaderSize:n], payload)

	return n, nil
}

// Decode parses a received datagram.
//
// The returned payload aliases buf. Buffers shorter than HeaderSize fail
// with ErrShortPacket; bytes past MaxPacketSize are ignored.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(buf))
	}
	if len(buf) > MaxPacketSize {
		buf = buf[:MaxPacketSize]
	}

	return Packet{
		Header: Header{
			SessionID: binary.LittleEndian.Uint16(buf[0:2]),
			Sequence:  buf[2],
			Command:   Command(buf[3]),
		},
		Payload: buf[HeaderSize:],
	}, nil
}
