package throttle

import (
	"context"
	"net"
)

// Counter observes bytes moved through a throttled connection.
type Counter func(n int)

// Conn is a net.Conn whose reads and writes are charged to a Throttle.
type Conn struct {
	net.Conn
	ctx      context.Context
	throttle *Throttle
	onRead   Counter
	onWrite  Counter
}

// Wrap charges c's traffic to t until ctx is done. Counters may be nil.
func (t *Throttle) Wrap(ctx context.Context, c net.Conn, onRead, onWrite Counter) *Conn {
	return &Conn{Conn: c, ctx: ctx, throttle: t, onRead: onRead, onWrite: onWrite}
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		if c.onRead != nil {
			c.onRead(n)
		}
		if werr := c.throttle.WaitDownload(c.ctx, n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := len(p) - written
		if burst := c.throttle.upload.limiter.Burst(); c.throttle.upload.enabled.Load() && burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := c.throttle.WaitUpload(c.ctx, chunk); err != nil {
			return written, err
		}
		n, err := c.Conn.Write(p[written : written+chunk])
		written += n
		if n > 0 && c.onWrite != nil {
			c.onWrite(n)
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
