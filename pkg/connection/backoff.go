package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Dial schedule defaults.
const (
	// InitialBackoff is the first delay before retrying a dial.
	InitialBackoff = 100 * time.Millisecond

	// MaxBackoff caps the dial retry delay.
	MaxBackoff = 5 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.25
)

// Accept schedule defaults.
const (
	AcceptInitialBackoff = 5 * time.Millisecond
	AcceptMaxBackoff     = 1 * time.Second
)

// Backoff calculates exponential backoff delays with jitter.
// It is safe for concurrent use.
type Backoff struct {
	mu sync.Mutex

	// Current backoff delay (before jitter)
	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DialConfig is the schedule for retrying refused dials.
func DialConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

// AcceptConfig is the schedule for transient accept errors.
func AcceptConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    AcceptInitialBackoff,
		Max:        AcceptMaxBackoff,
		Multiplier: BackoffMultiplier,
	}
}

// NewBackoff creates a backoff calculator with the dial schedule.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DialConfig())
}

// NewAcceptBackoff creates a backoff calculator with the accept schedule.
func NewAcceptBackoff() *Backoff {
	return NewBackoffWithConfig(AcceptConfig())
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
// Zero fields take the dial defaults; zero jitter means none.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next backoff delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Peek returns the current backoff delay without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset resets the backoff to initial values.
// Call this after a successful accept or dial.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of backoff attempts since last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base backoff (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Sequence returns the first n base delays of a fresh schedule with the
// same configuration, without advancing b.
func (b *Backoff) Sequence(n int) []time.Duration {
	b.mu.Lock()
	initial, max, mult := b.initial, b.max, b.multiplier
	b.mu.Unlock()

	out := make([]time.Duration, 0, n)
	d := initial
	for i := 0; i < n; i++ {
		out = append(out, d)
		d = time.Duration(float64(d) * mult)
		if d > max {
			d = max
		}
	}
	return out
}

// Wait sleeps for the next delay or until done is closed. It reports false
// when done fired first.
func (b *Backoff) Wait(done <-chan struct{}) bool {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	jitterAmount := time.Duration(float64(d) * b.jitter * b.rng.Float64())
	return d + jitterAmount
}
