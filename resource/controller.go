package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the limits of a Controller.
type Config struct {
	// BufferLimitBytes caps the bytes held in pending bulk blocks.
	// If 0, usage is tracked but not limited.
	BufferLimitBytes int64

	// IOBytesPerSec caps the throughput of bucket reads and writes.
	// If 0, unlimited.
	IOBytesPerSec int64
}

// Controller accounts buffered bytes and throttles bulk IO.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	bufSem  *semaphore.Weighted // nil if unlimited
	bufUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.BufferLimitBytes > 0 {
		c.bufSem = semaphore.NewWeighted(cfg.BufferLimitBytes)
	}
	if cfg.IOBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), int(cfg.IOBytesPerSec))
	}
	return c
}

// Config returns the limits the controller was created with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireBuffer reserves bytes of block buffer, blocking until they are
// available or ctx is done. Requests larger than the limit are clamped to
// it so a single oversized block cannot wait forever.
func (c *Controller) AcquireBuffer(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.bufSem != nil {
		if err := c.bufSem.Acquire(ctx, c.clamp(bytes)); err != nil {
			return err
		}
	}
	c.bufUsed.Add(bytes)
	return nil
}

// TryAcquireBuffer is AcquireBuffer without blocking.
func (c *Controller) TryAcquireBuffer(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.bufSem != nil && !c.bufSem.TryAcquire(c.clamp(bytes)) {
		return false
	}
	c.bufUsed.Add(bytes)
	return true
}

// ReleaseBuffer returns bytes reserved by AcquireBuffer.
func (c *Controller) ReleaseBuffer(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.bufSem != nil {
		c.bufSem.Release(c.clamp(bytes))
	}
	c.bufUsed.Add(-bytes)
}

// BufferUsage returns the bytes currently reserved.
func (c *Controller) BufferUsage() int64 {
	if c == nil {
		return 0
	}
	return c.bufUsed.Load()
}

func (c *Controller) clamp(bytes int64) int64 {
	if bytes > c.cfg.BufferLimitBytes {
		return c.cfg.BufferLimitBytes
	}
	return bytes
}

// AcquireIO waits until the IO limit admits n bytes. Requests above the
// burst size are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
