// Package rescontrol samples system memory pressure and tightens the
// answer cache's weighted byte budget under sustained pressure. It is an
// additive safety valve over the static answer_cache_max_bytes setting,
// never a replacement for it: when memory is below the configured
// high-watermark, the configured budget is left untouched.
package rescontrol

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// ByteBudgetSetter is satisfied by internal/cache.Cache[V]. It is declared
// here rather than imported so this package stays free of the cache's type
// parameter.
type ByteBudgetSetter interface {
	SetMaxBytes(maxBytes int)
}

// MemorySampler reports the current used-memory percentage. The default,
// gopsutil-backed implementation is swapped out in tests for a fake.
type MemorySampler func() (usedPercent float64, err error)

func defaultSampler() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Controller periodically tightens a weighted cache's byte budget when
// system memory usage exceeds HighWatermarkPercent, and relaxes it back to
// BaseMaxBytes once pressure subsides.
type Controller struct {
	logger               *slog.Logger
	target               ByteBudgetSetter
	baseMaxBytes         int
	highWatermarkPercent float64
	interval             time.Duration
	sample               MemorySampler

	lastAppliedMaxBytes int
}

// Config configures a Controller.
type Config struct {
	// Target is the cache whose byte budget is adjusted.
	Target ByteBudgetSetter
	// BaseMaxBytes is the configured answer_cache_max_bytes value; this is
	// the ceiling the controller relaxes back to when memory is healthy.
	BaseMaxBytes int
	// HighWatermarkPercent is the used-memory percentage above which the
	// budget starts tightening.
	HighWatermarkPercent float64
	// Interval is how often memory is sampled. Defaults to 10s.
	Interval time.Duration
	// Sample overrides the memory sampling function; defaults to gopsutil's
	// mem.VirtualMemory. Exposed for tests.
	Sample MemorySampler

	Logger *slog.Logger
}

// New creates a Controller. It does not start sampling until Run is called.
func New(cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Sample == nil {
		cfg.Sample = defaultSampler
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		logger:               cfg.Logger,
		target:               cfg.Target,
		baseMaxBytes:         cfg.BaseMaxBytes,
		highWatermarkPercent: cfg.HighWatermarkPercent,
		interval:             cfg.Interval,
		sample:               cfg.Sample,
		lastAppliedMaxBytes:  cfg.BaseMaxBytes,
	}
}

// Run samples memory on Interval until ctx is done. internal/server's
// Runner starts it as a goroutine (startResourceController).
func (c *Controller) Run(ctx context.Context) {
	if c.target == nil || c.baseMaxBytes <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick samples memory once and applies the resulting budget. Exported so
// tests (and callers wanting a manual poke) can drive it without waiting on
// a ticker.
func (c *Controller) Tick() {
	usedPercent, err := c.sample()
	if err != nil {
		c.logger.Warn("rescontrol: memory sample failed", "error", err)
		return
	}

	maxBytes := c.computeBudget(usedPercent)
	if maxBytes == c.lastAppliedMaxBytes {
		return
	}

	c.target.SetMaxBytes(maxBytes)
	c.logger.Info("rescontrol: adjusted answer cache budget",
		"used_percent", usedPercent,
		"high_watermark_percent", c.highWatermarkPercent,
		"max_bytes", maxBytes,
	)
	c.lastAppliedMaxBytes = maxBytes
}

// computeBudget tightens baseMaxBytes by the fraction usedPercent is over
// highWatermarkPercent: at the watermark the budget is untouched, and it
// shrinks linearly as pressure climbs toward 100%.
func (c *Controller) computeBudget(usedPercent float64) int {
	if c.highWatermarkPercent <= 0 || usedPercent <= c.highWatermarkPercent {
		return c.baseMaxBytes
	}

	headroom := 100 - c.highWatermarkPercent
	if headroom <= 0 {
		return c.baseMaxBytes
	}

	over := usedPercent - c.highWatermarkPercent
	fraction := over / headroom
	if fraction > 1 {
		fraction = 1
	}

	shrunk := float64(c.baseMaxBytes) * (1 - fraction)
	minBudget := float64(c.baseMaxBytes) / 10
	if shrunk < minBudget {
		shrunk = minBudget
	}
	return int(shrunk)
}
