package connection

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DialSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			1600 * time.Millisecond,
			3200 * time.Millisecond,
			5 * time.Second,
			5 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()

			if base < exp-time.Millisecond || base > exp+time.Millisecond {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("AcceptSequenceHasNoJitter", func(t *testing.T) {
		b := NewAcceptBackoff()

		expected := []time.Duration{
			5 * time.Millisecond,
			10 * time.Millisecond,
			20 * time.Millisecond,
			40 * time.Millisecond,
			80 * time.Millisecond,
			160 * time.Millisecond,
			320 * time.Millisecond,
			640 * time.Millisecond,
			time.Second,
			time.Second,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: delay = %v, want %v", i, got, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = b.Peek()
		}

		upper := time.Duration(float64(InitialBackoff)*(1+JitterFactor)) + time.Millisecond
		for i, s := range samples {
			if s < InitialBackoff || s > upper {
				t.Errorf("Sample %d: %v out of expected range [%v, %v]", i, s, InitialBackoff, upper)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		for i := 0; i < 5; i++ {
			b.Next()
		}
		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}
		if b.Attempts() != 5 {
			t.Errorf("Attempts = %d, want 5", b.Attempts())
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("After reset: Current = %v, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("After reset: Attempts = %d, want 0", b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    10 * time.Millisecond,
			Max:        25 * time.Millisecond,
			Multiplier: 3,
		})
		got := b.Sequence(4)
		want := []time.Duration{10 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Sequence[%d] = %v, want %v", i, got[i], want[i])
			}
		}
		if b.Attempts() != 0 {
			t.Error("Sequence should not advance the backoff")
		}
	})

	t.Run("InvalidConfigUsesDefaults", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})
		if b.Current() != InitialBackoff {
			t.Errorf("Current = %v, want %v", b.Current(), InitialBackoff)
		}
		if b.Peek() != InitialBackoff {
			t.Error("negative jitter should be treated as none")
		}
	})
}

func TestBackoffWait(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond})
	if !b.Wait(nil) {
		t.Error("Wait should complete when done is nil")
	}

	slow := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour, Max: time.Hour})
	done := make(chan struct{})
	close(done)
	if slow.Wait(done) {
		t.Error("Wait should return false when done is closed")
	}
}
