package registry

import (
	"errors"
	"sync"
)

// ErrConnClosed is returned by Send after a connection has been closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when a subscriber cannot keep up with the
// broadcast rate. The registry treats it like any other send failure and
// disconnects the handle.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn is one bidirectional channel to a client. The registry owns the handle
// for its lifetime; transports wrap their underlying stream in this interface.
type Conn interface {
	Send(msg []byte) error
	Close() error
}

// ChanConn is a channel-backed Conn. Send is non-blocking: once the buffer is
// full the message is rejected so a stalled reader never stalls a broadcast.
type ChanConn struct {
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewChanConn(buffer int) *ChanConn {
	return &ChanConn{
		out:    make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *ChanConn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.out <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Out exposes the delivery channel for the transport to drain.
func (c *ChanConn) Out() <-chan []byte {
	return c.out
}

func (c *ChanConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// Closed is readable once the connection has been closed.
func (c *ChanConn) Closed() <-chan struct{} {
	return c.closed
}
