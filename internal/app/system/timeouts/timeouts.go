// Package timeouts holds the operation budgets used with context.WithTimeout
// by handlers, stores and scheduled jobs.
//
//   - Ping: connectivity checks
//   - Short: single-document reads and lookups
//   - Medium: list queries and simple writes
//   - Long: transactions touching several collections
//   - Job: one run of a scheduled job
//
// Each budget can be overridden at startup with a TRADEYA_TIMEOUT_* variable.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultJob    = 2 * time.Minute
)

// Config is a snapshot of the active budgets.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Job    time.Duration
}

var defaults = Config{
	Ping:   DefaultPing,
	Short:  DefaultShort,
	Medium: DefaultMedium,
	Long:   DefaultLong,
	Job:    DefaultJob,
}

var (
	mu  sync.RWMutex
	cur = defaults
)

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }
func Job() time.Duration    { return get(func(c Config) time.Duration { return c.Job }) }

// Current returns the active budgets.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// ConfigureFromEnv applies TRADEYA_TIMEOUT_{PING,SHORT,MEDIUM,LONG,JOB}.
// Values are Go durations ("500ms", "45s", "2m"); unset, unparsable and
// non-positive values keep the current budget. It returns how many budgets
// were overridden.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for name, dst := range map[string]*time.Duration{
		"TRADEYA_TIMEOUT_PING":   &cur.Ping,
		"TRADEYA_TIMEOUT_SHORT":  &cur.Short,
		"TRADEYA_TIMEOUT_MEDIUM": &cur.Medium,
		"TRADEYA_TIMEOUT_LONG":   &cur.Long,
		"TRADEYA_TIMEOUT_JOB":    &cur.Job,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			n++
		}
	}
	return n
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline, rather than the caller, ended the operation.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if log != nil && ctx.Err() == context.DeadlineExceeded {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
