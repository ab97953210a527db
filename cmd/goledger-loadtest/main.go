package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goLedger "github.com/finbolt/goLedger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (read + mutate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goLedger.DefaultConfig()
	// The load generator should not throttle itself; admission behavior is
	// exercised by the test suite, not here.
	cfg.Admission.DefaultPolicy = goLedger.BucketPolicy{
		Capacity:            1_000_000,
		RefillRatePerSecond: 1_000_000,
	}

	engine, err := goLedger.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	accountIDs := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := 0; i < *accounts; i++ {
		id := fmt.Sprintf("acct-%d", i)
		accountIDs[i] = id
		if _, err := engine.OpenAccount(ctx, id, decimal.NewFromInt(1_000_000)); err != nil {
			fmt.Fprintf(os.Stderr, "open account failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runReadPhase(ctx, engine, accountIDs, *ops, *concurrency)
	mutateStats := runMutatePhase(ctx, engine, accountIDs, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("read", readStats)
	printStats("mutate", mutateStats)
	fmt.Printf("mutate conflicts retried: %d\n", mutateStats.conflicts)

	snapshot := engine.MetricsSnapshot()
	fmt.Println("---- engine counters ----")
	fmt.Printf("committed=%d conflicts=%d replays=%d throttled=%d\n",
		snapshot.Counters[goLedger.MetricSubmitSuccess],
		snapshot.Counters[goLedger.MetricVersionConflict],
		snapshot.Counters[goLedger.MetricDuplicateReplay],
		snapshot.Counters[goLedger.MetricSubmitThrottled],
	)
}

func runReadPhase(ctx context.Context, engine *goLedger.Engine, accountIDs []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(accountIDs))
				t0 := time.Now()
				_, err := engine.GetAccount(ctx, accountIDs[idx])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures, 0)
}

func runMutatePhase(ctx context.Context, engine *goLedger.Engine, accountIDs []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		conflicts int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	one := decimal.New(1, 0)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			identity := fmt.Sprintf("worker-%d", worker)
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(accountIDs))
				accountID := accountIDs[idx]
				idemKey := fmt.Sprintf("load-%d-%d", worker, i)

				view, err := engine.GetAccount(ctx, accountID)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				version := view.Version

				t0 := time.Now()
				for {
					_, err = engine.Submit(ctx, goLedger.SubmitRequest{
						AccountID:       accountID,
						Identity:        identity,
						IdempotencyKey:  idemKey,
						Operation:       goLedger.OperationDebit,
						Amount:          one,
						ExpectedVersion: version,
					})
					var conflict *goLedger.VersionConflictError
					if errors.As(err, &conflict) {
						atomic.AddInt64(&conflicts, 1)
						version = conflict.CurrentVersion
						continue
					}
					break
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures, conflicts)
}

type phaseStats struct {
	total     time.Duration
	ops       int
	failures  int64
	conflicts int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
}

func computeStats(total time.Duration, samples []time.Duration, failures, conflicts int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:     total,
		ops:       len(samples),
		failures:  failures,
		conflicts: conflicts,
		p50:       percentile(samples, 50),
		p95:       percentile(samples, 95),
		p99:       percentile(samples, 99),
		opsPerS:   float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
