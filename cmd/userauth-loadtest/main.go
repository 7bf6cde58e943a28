// Command userauth-loadtest drives register, login and session resolution
// against a Redis-backed Manager and prints latency percentiles per phase.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

type options struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
	fastHash    bool
}

type userState struct {
	email    string
	password string
	mu       sync.Mutex
	session  string
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("userauth-loadtest", pflag.ExitOnError)
	flags.IntVar(&opts.users, "users", 2000, "number of accounts to register")
	flags.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	flags.IntVar(&opts.ops, "ops", 20000, "operations per login and resolve phase")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flags.StringVar(&opts.prefix, "prefix", "ualt", "redis key prefix")
	flags.BoolVar(&opts.fastHash, "fast-hash", true, "use minimum argon2id parameters so hashing does not dominate")
	_ = flags.Parse(os.Args[1:])

	if opts.redisAddr == "" {
		opts.redisAddr = os.Getenv("REDIS_ADDR")
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("users, concurrency and ops must be > 0")
	}

	client, cleanup, err := connect(opts.redisAddr, out)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := userauth.DefaultConfig()
	if opts.fastHash {
		cfg.Password.Memory = 8 * 1024
		cfg.Password.Time = 1
		cfg.Password.Parallelism = 1
	}
	mgr, err := userauth.New().
		WithConfig(cfg).
		WithStore(redisstore.New(client, opts.prefix)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}
	defer mgr.Close()

	users := make([]userState, opts.users)
	for i := range users {
		users[i].email = fmt.Sprintf("user-%d@loadtest.local", i)
		users[i].password = fmt.Sprintf("pw-%d", i)
	}

	fmt.Fprintf(out, "registering %d users...\n", opts.users)
	register := runPhase(opts.users, opts.concurrency, func(i int, _ *rand.Rand) error {
		_, err := mgr.Register(ctx, users[i].email, users[i].password)
		return err
	})

	login := runPhase(opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		u := &users[r.IntN(len(users))]
		tok, err := mgr.Login(ctx, u.email, u.password)
		if err != nil {
			return err
		}
		u.mu.Lock()
		u.session = tok
		u.mu.Unlock()
		return nil
	})

	resolve := runPhase(opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		u := &users[r.IntN(len(users))]
		u.mu.Lock()
		tok := u.session
		u.mu.Unlock()
		if tok == "" {
			return nil
		}
		// A concurrent login may have replaced tok; that is an expected rejection.
		_, err := mgr.ResolveSession(ctx, tok)
		if err != nil && !errors.Is(err, userauth.ErrUnauthenticated) {
			return err
		}
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "register", register)
	printStats(out, "login", login)
	printStats(out, "resolve", resolve)

	snap := mgr.MetricsSnapshot()
	fmt.Fprintf(out, "sessions resolved=%d rejected=%d store_unavailable=%d\n",
		snap.Counters[userauth.MetricSessionResolved],
		snap.Counters[userauth.MetricSessionRejected],
		snap.Counters[userauth.MetricStoreUnavailable],
	)
	return nil
}

func connect(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase calls fn ops times across concurrency workers. Each worker gets its
// own random source.
func runPhase(ops, concurrency int, fn func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := range concurrency {
		wg.Go(func() {
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					break
				}
				t0 := time.Now()
				if err := fn(i, r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		})
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects sorted samples.
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
