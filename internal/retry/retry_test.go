package retry_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/valet/internal/retry"
)

func quickConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := retry.Do(context.Background(), quickConfig(3), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want ok after 1", got, calls)
	}
}

func TestDoRecoversAfterFailures(t *testing.T) {
	calls := 0
	got, err := retry.Do(context.Background(), quickConfig(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cause := errors.New("still down")
	calls := 0
	_, err := retry.Do(context.Background(), quickConfig(3), func() (int, error) {
		calls++
		return 0, cause
	})
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the last error wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), "all 3 attempts failed") {
		t.Errorf("unexpected error text %q", err)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	cfg := quickConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	_, err := retry.Do(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, fatal
	})
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("expected cause preserved, got %v", err)
	}
}

func TestDoZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), retry.Config{}, func() (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}
	if err == nil {
		t.Error("expected error")
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	cfg := quickConfig(10)
	cfg.InitialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Do(ctx, cfg, func() (int, error) {
		return 0, errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoFunc(t *testing.T) {
	calls := 0
	err := retry.DoFunc(context.Background(), quickConfig(2), func() error {
		calls++
		if calls == 1 {
			return errors.New("once")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DoFunc failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
