// Package bufpool provides reusable datagram buffers.
//
// Every TNFS transaction needs one send buffer and one receive buffer of
// MaxPacketSize bytes. Directory enumeration issues one transaction per
// entry, so buffers are recycled through a sync.Pool instead of being
// allocated per call.
//
// Thread Safety:
// All operations are safe for concurrent use.
package bufpool

import "sync"

// Pool hands out byte slices of a single fixed size.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a pool of buffers of exactly size bytes.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the length of buffers handed out by Get.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of length Size(). Its contents are undefined.
//
// The caller must call Put when finished with the buffer.
func (p *Pool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns buf to the pool. Buffers whose capacity does not match the
// pool size are dropped and left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	full := buf[:p.size]
	p.pool.Put(&full)
}
