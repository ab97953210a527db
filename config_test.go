package goLedger

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero default capacity", func(c *Config) { c.Admission.DefaultPolicy.Capacity = 0 }},
		{"zero default refill", func(c *Config) { c.Admission.DefaultPolicy.RefillRatePerSecond = 0 }},
		{"bad class policy", func(c *Config) {
			c.Admission.ClassPolicies = map[string]BucketPolicy{"x": {Capacity: -1, RefillRatePerSecond: 1}}
		}},
		{"negative idle eviction", func(c *Config) { c.Admission.IdleEviction = -time.Second }},
		{"negative sweep interval", func(c *Config) { c.Admission.SweepInterval = -time.Second }},
		{"zero write timeout", func(c *Config) { c.Ledger.ConditionalWriteTimeout = 0 }},
		{"zero pending ttl", func(c *Config) { c.Idempotency.PendingTTL = 0 }},
		{"negative retention", func(c *Config) { c.Idempotency.RetentionWindow = -time.Hour }},
		{"retention under pending ttl", func(c *Config) {
			c.Idempotency.PendingTTL = time.Minute
			c.Idempotency.RetentionWindow = time.Second
		}},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		cfg := defaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestConfigZeroRetentionAllowed(t *testing.T) {
	cfg := defaultConfig()
	cfg.Idempotency.RetentionWindow = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero retention must be allowed: %v", err)
	}
}

func TestCloneConfigCopiesPolicyMap(t *testing.T) {
	cfg := defaultConfig()
	cfg.Admission.ClassPolicies = map[string]BucketPolicy{
		"a": {Capacity: 1, RefillRatePerSecond: 1},
	}

	cloned := cloneConfig(cfg)
	cfg.Admission.ClassPolicies["a"] = BucketPolicy{Capacity: 99, RefillRatePerSecond: 99}

	if cloned.Admission.ClassPolicies["a"].Capacity != 1 {
		t.Fatal("clone aliases the source policy map")
	}
}
