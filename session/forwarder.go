package session

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default per-forwarder read buffer.
const DefaultBufferSize = 8 * 1024

// DefaultLinger is how long a forwarder waits before fully closing its
// peer once the other direction has terminated.
const DefaultLinger = 2 * time.Second

// forwardResult is sent on a forwarder's completion channel.
type forwardResult struct {
	direction string
	bytes int64
	err error
}

// runForwarder copies from src to dst in bufferSize chunks, incrementing
// counter after every read and calling touch on progress, until EOF, an
// error, or ctx cancellation. It never returns io.EOF as an error value on
// its result channel; a clean EOF is reported as err == nil.
func runForwarder(ctx context.Context, direction string, src io.Reader, dst io.Writer, bufferSize int, counter *AtomicCounter, touch func(), results chan<- forwardResult) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]byte, bufferSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			results <- forwardResult{direction: direction, bytes: total, err: ctx.Err()}
			return
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				results <- forwardResult{direction: direction, bytes: total, err: writeErr}
				return
			}
			total += int64(n)
			counter.Add(int64(n))
			touch()
		}
		if readErr != nil {
			if readErr == io.EOF {
				results <- forwardResult{direction: direction, bytes: total, err: nil}
				return
			}
			results <- forwardResult{direction: direction, bytes: total, err: readErr}
			return
		}
	}
}

// AtomicCounter is a tiny indirection over Session's int64 byte counters
// so forwarder code does not need to know which direction it is running.
type AtomicCounter struct {
	add func(int64)
}

// NewAtomicCounter wraps add (typically Session.BytesXToY.Add) as an
// AtomicCounter.
func NewAtomicCounter(add func(int64)) *AtomicCounter {
	return &AtomicCounter{add: add}
}

func (c *AtomicCounter) Add(n int64) {
	c.add(n)
}

// closeAfterLinger closes both ends of a connection pair after the given
// linger duration, honoring an earlier cancellation. The first direction
// to finish schedules this; if the second direction finishes on its own
// within the linger window, the connections are already draining and the
// second close is a harmless no-op.
func closeAfterLinger(ctx context.Context, linger time.Duration, conns ...net.Conn) {
	if linger <= 0 {
		for _, c := range conns {
			_ = c.Close()
		}
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(linger):
	}
	for _, c := range conns {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Debug("session: error closing connection during linger-close")
		}
	}
}
