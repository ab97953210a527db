package goLedger

import (
	"errors"
	"time"
)

// Config carries every tuning knob for the engine. Populate it once before
// Build; the engine never mutates it afterwards.
type Config struct {
	Admission   AdmissionConfig
	Ledger      LedgerConfig
	Idempotency IdempotencyConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
ADMISSION CONFIG
====================================
*/

// BucketPolicy is the token budget for one identity class.
type BucketPolicy struct {
	Capacity            int
	RefillRatePerSecond float64
}

// AdmissionConfig configures per-identity throttling.
type AdmissionConfig struct {
	// DefaultPolicy applies to identities whose class has no explicit
	// policy (and to all identities when no classifier is installed).
	DefaultPolicy BucketPolicy
	// ClassPolicies maps identity-class names to budgets, e.g.
	// "anonymous" vs "authenticated".
	ClassPolicies map[string]BucketPolicy
	// IdleEviction is how long an identity may stay quiet before its
	// bucket is swept. Zero disables eviction.
	IdleEviction time.Duration
	// SweepInterval is how often the background sweep runs. Zero disables
	// the background sweeper (Sweep can still be driven manually).
	SweepInterval time.Duration
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig configures the balance store.
type LedgerConfig struct {
	RedisPrefix string
	// ConditionalWriteTimeout bounds one commit round-trip. Expiry
	// surfaces as a retryable storage error, never a hang.
	ConditionalWriteTimeout time.Duration
}

/*
====================================
IDEMPOTENCY CONFIG
====================================
*/

// IdempotencyConfig configures duplicate suppression.
type IdempotencyConfig struct {
	RedisPrefix string
	// RetentionWindow is how long finalized result snapshots are kept.
	// Zero keeps them until evicted externally.
	RetentionWindow time.Duration
	// PendingTTL caps how long an unfinished reservation can block
	// same-key retries after a crash.
	PendingTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of applying backpressure when the
	// buffer is full. Dropped counts are observable via AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the builder starts from. Callers
// can adjust fields before passing it to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Admission: AdmissionConfig{
			DefaultPolicy: BucketPolicy{
				Capacity:            100,
				RefillRatePerSecond: 50,
			},
			IdleEviction:  10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Ledger: LedgerConfig{
			RedisPrefix:             "lg",
			ConditionalWriteTimeout: 2 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			RedisPrefix:     "ir",
			RetentionWindow: 24 * time.Hour,
			PendingTTL:      30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if c.Admission.DefaultPolicy.Capacity <= 0 || c.Admission.DefaultPolicy.RefillRatePerSecond <= 0 {
		return errors.New("Admission.DefaultPolicy requires positive capacity and refill rate")
	}
	for class, p := range c.Admission.ClassPolicies {
		if p.Capacity <= 0 || p.RefillRatePerSecond <= 0 {
			return errors.New("Admission.ClassPolicies[" + class + "] requires positive capacity and refill rate")
		}
	}
	if c.Admission.IdleEviction < 0 || c.Admission.SweepInterval < 0 {
		return errors.New("Admission eviction durations must not be negative")
	}
	if c.Ledger.ConditionalWriteTimeout <= 0 {
		return errors.New("Ledger.ConditionalWriteTimeout must be positive")
	}
	if c.Idempotency.PendingTTL <= 0 {
		return errors.New("Idempotency.PendingTTL must be positive")
	}
	if c.Idempotency.RetentionWindow < 0 {
		return errors.New("Idempotency.RetentionWindow must not be negative")
	}
	if c.Idempotency.RetentionWindow > 0 && c.Idempotency.RetentionWindow < c.Idempotency.PendingTTL {
		return errors.New("Idempotency.RetentionWindow must not undercut PendingTTL")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Admission.ClassPolicies != nil {
		out.Admission.ClassPolicies = make(map[string]BucketPolicy, len(cfg.Admission.ClassPolicies))
		for class, p := range cfg.Admission.ClassPolicies {
			out.Admission.ClassPolicies[class] = p
		}
	}
	return out
}
