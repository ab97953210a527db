package goLedger

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/finbolt/goLedger/admission"
	"github.com/finbolt/goLedger/clock"
	"github.com/finbolt/goLedger/idempotency"
	"github.com/finbolt/goLedger/ledger"
)

// IdentityClassifier maps a caller identity to its identity-class name for
// admission-policy lookup, e.g. "anonymous" vs "authenticated".
type IdentityClassifier func(identity string) string

// Builder assembles an [Engine]. A Builder is single-use: Build consumes it.
type Builder struct {
	config Config
	redis  *redis.Client
	clk    clock.Clock

	classifier IdentityClassifier
	auditSink  AuditSink

	built bool
}

// New creates a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the ledger and idempotency stores.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithClock overrides the time source. Tests use [clock.Fake].
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

// WithIdentityClassifier installs the identity-class resolver consulted by
// admission control. Without one, every identity uses the default policy.
func (b *Builder) WithIdentityClassifier(fn IdentityClassifier) *Builder {
	b.classifier = fn
	return b
}

// WithAuditSink sets the destination for audit events. Audit must also be
// enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Submit latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the stores and the admission
// controller, and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := b.clk
	if clk == nil {
		clk = clock.Real{}
	}

	admissionCfg := admission.Config{
		DefaultPolicy: admission.Policy{
			Capacity:            cfg.Admission.DefaultPolicy.Capacity,
			RefillRatePerSecond: cfg.Admission.DefaultPolicy.RefillRatePerSecond,
		},
		IdleEviction:  cfg.Admission.IdleEviction,
		SweepInterval: cfg.Admission.SweepInterval,
	}
	if len(cfg.Admission.ClassPolicies) > 0 {
		admissionCfg.Policies = make(map[string]admission.Policy, len(cfg.Admission.ClassPolicies))
		for class, p := range cfg.Admission.ClassPolicies {
			admissionCfg.Policies[class] = admission.Policy{
				Capacity:            p.Capacity,
				RefillRatePerSecond: p.RefillRatePerSecond,
			}
		}
	}
	if b.classifier != nil {
		admissionCfg.Classifier = admission.Classifier(b.classifier)
	}

	controller, err := admission.NewController(admissionCfg, clk)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		admission: controller,
		ledgers:   ledger.NewStore(b.redis, cfg.Ledger.RedisPrefix),
		idem:      idempotency.NewStore(b.redis, cfg.Idempotency.RedisPrefix),
		clk:       clk,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
