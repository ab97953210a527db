package admission

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finbolt/goLedger/clock"
)

const shardCount = 32

// ErrInvalidPolicy is returned by NewController when a bucket policy has a
// non-positive capacity or refill rate.
var ErrInvalidPolicy = errors.New("invalid admission policy")

// Policy describes the token budget for one identity class.
type Policy struct {
	Capacity            int
	RefillRatePerSecond float64
}

func (p Policy) valid() bool {
	return p.Capacity > 0 && p.RefillRatePerSecond > 0
}

// Classifier maps a caller identity to an identity-class name. A nil
// classifier or an unknown class falls back to the default policy.
type Classifier func(identity string) string

// Config holds admission controller tuning parameters.
type Config struct {
	DefaultPolicy Policy
	Policies      map[string]Policy
	Classifier    Classifier

	// IdleEviction is how long a bucket may go untouched before a sweep
	// removes it. Zero disables eviction. Eviction is safe: a recreated
	// bucket starts full, which is what an idle bucket would have refilled
	// to anyway.
	IdleEviction  time.Duration
	SweepInterval time.Duration
}

type bucket struct {
	tokens float64
	policy Policy
	last   time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Controller admits or rejects requests per caller identity using lazily
// created token buckets. State is sharded so unrelated identities never
// contend on the same lock.
type Controller struct {
	cfg    Config
	clk    clock.Clock
	shards [shardCount]*shard

	created atomic.Uint64
	evicted atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Stats is a point-in-time view of controller state.
type Stats struct {
	Buckets uint64
	Created uint64
	Evicted uint64
}

// NewController validates the configured policies and returns a controller.
// When cfg.SweepInterval and cfg.IdleEviction are both set, a background
// sweeper runs until [Controller.Close].
func NewController(cfg Config, clk clock.Clock) (*Controller, error) {
	if !cfg.DefaultPolicy.valid() {
		return nil, ErrInvalidPolicy
	}
	for _, p := range cfg.Policies {
		if !p.valid() {
			return nil, ErrInvalidPolicy
		}
	}
	if clk == nil {
		clk = clock.Real{}
	}

	c := &Controller{
		cfg:  cfg,
		clk:  clk,
		done: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}

	if cfg.SweepInterval > 0 && cfg.IdleEviction > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}

	return c, nil
}

// Allow reports whether one request for identity should be admitted right
// now, spending one token if so. Refill and consumption happen as a single
// step under the identity's shard lock, so two concurrent calls for the same
// identity observe a serialized view.
func (c *Controller) Allow(identity string) bool {
	s := c.shards[shardIndex(identity)]
	now := c.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[identity]
	if !ok {
		policy := c.policyFor(identity)
		b = &bucket{
			tokens: float64(policy.Capacity),
			policy: policy,
			last:   now,
		}
		s.buckets[identity] = b
		c.created.Add(1)
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.policy.RefillRatePerSecond
		if limit := float64(b.policy.Capacity); b.tokens > limit {
			b.tokens = limit
		}
		b.last = now
	}
	// Clock regression: keep tokens and the anchor as-is so re-traversing
	// the same interval never counts as fresh elapsed time.

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep removes buckets untouched for at least idleFor and returns how many
// were evicted. Each shard is locked independently.
func (c *Controller) Sweep(idleFor time.Duration) int {
	if idleFor <= 0 {
		return 0
	}
	now := c.clk.Now()
	removed := 0

	for _, s := range c.shards {
		s.mu.Lock()
		for identity, b := range s.buckets {
			if now.Sub(b.last) >= idleFor {
				delete(s.buckets, identity)
				removed++
			}
		}
		s.mu.Unlock()
	}

	c.evicted.Add(uint64(removed))
	return removed
}

// Stats returns a snapshot of bucket counts.
func (c *Controller) Stats() Stats {
	var live uint64
	for _, s := range c.shards {
		s.mu.Lock()
		live += uint64(len(s.buckets))
		s.mu.Unlock()
	}
	return Stats{
		Buckets: live,
		Created: c.created.Load(),
		Evicted: c.evicted.Load(),
	}
}

// Close stops the background sweeper, if any. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

func (c *Controller) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep(c.cfg.IdleEviction)
		case <-c.done:
			return
		}
	}
}

func (c *Controller) policyFor(identity string) Policy {
	if c.cfg.Classifier == nil {
		return c.cfg.DefaultPolicy
	}
	if p, ok := c.cfg.Policies[c.cfg.Classifier(identity)]; ok {
		return p
	}
	return c.cfg.DefaultPolicy
}

func shardIndex(identity string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return int(h.Sum32() % shardCount)
}
