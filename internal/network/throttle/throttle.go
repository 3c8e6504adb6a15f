package throttle

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// bucket is a byte-rate limiter that costs nothing while disabled.
type bucket struct {
	limiter *rate.Limiter
	enabled atomic.Bool
}

func newBucket(bytesPerSec int64) *bucket {
	if bytesPerSec <= 0 {
		return &bucket{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))}
	b.enabled.Store(true)
	return b
}

// set updates the rate. 0 or less is unlimited. The burst allows one second of traffic.
func (b *bucket) set(bytesPerSec int64) {
	if bytesPerSec <= 0 {
		b.enabled.Store(false)
		b.limiter.SetLimit(rate.Inf)
		return
	}
	b.limiter.SetLimit(rate.Limit(bytesPerSec))
	b.limiter.SetBurst(int(bytesPerSec))
	b.enabled.Store(true)
}

// wait blocks until n bytes may pass, in burst-sized slices.
func (b *bucket) wait(ctx context.Context, n int) error {
	for n > 0 {
		if !b.enabled.Load() {
			return nil
		}
		chunk := n
		if burst := b.limiter.Burst(); burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := b.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (b *bucket) limit() int64 {
	if !b.enabled.Load() {
		return 0
	}
	return int64(b.limiter.Limit())
}

// Throttle is the global upload and download budget shared by every
// connection it wraps.
type Throttle struct {
	upload   *bucket
	download *bucket
}

// New creates a throttle. A rate of 0 or less is unlimited.
func New(uploadBytesPerSec, downloadBytesPerSec int64) *Throttle {
	return &Throttle{
		upload:   newBucket(uploadBytesPerSec),
		download: newBucket(downloadBytesPerSec),
	}
}

// SetLimits changes both rates. Connections already wrapped pick up the new rates.
func (t *Throttle) SetLimits(uploadBytesPerSec, downloadBytesPerSec int64) {
	t.upload.set(uploadBytesPerSec)
	t.download.set(downloadBytesPerSec)
}

// Limits returns the current rates, 0 meaning unlimited.
func (t *Throttle) Limits() (upload, download int64) {
	return t.upload.limit(), t.download.limit()
}

// WaitUpload blocks until n bytes may be sent.
func (t *Throttle) WaitUpload(ctx context.Context, n int) error {
	return t.upload.wait(ctx, n)
}

// WaitDownload blocks until n bytes may be received.
func (t *Throttle) WaitDownload(ctx context.Context, n int) error {
	return t.download.wait(ctx, n)
}
