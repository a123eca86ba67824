package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayGrowth(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2}

	if d := p.Delay(0); d != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 100ms", d)
	}
	if d := p.Delay(1); d != 200*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 200ms", d)
	}
	if d := p.Delay(2); d != 400*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 400ms", d)
	}
	// Capped at MaxDelay
	if d := p.Delay(10); d != time.Second {
		t.Errorf("Delay(10) = %v, want 1s", d)
	}
}

func TestDelayWithoutMaxDelay(t *testing.T) {
	// A policy with no cap still backs off exponentially.
	p := Policy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, Factor: 2}

	if d := p.Delay(0); d != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 100ms", d)
	}
	if d := p.Delay(1); d != 200*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 200ms", d)
	}
	if d := p.Delay(2); d != 400*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 400ms", d)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 2}

	calls := 0
	err := p.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		if attempt != calls {
			t.Errorf("attempt %d reported on call %d", attempt, calls)
		}
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}

	calls := 0
	wantErr := errors.New("still broken")
	err := p.Do(context.Background(), func(int) (bool, error) {
		calls++
		return true, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected MaxRetries+1 = 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := DefaultPolicy()

	calls := 0
	err := p.Do(context.Background(), func(int) (bool, error) {
		calls++
		return false, errors.New("deterministic failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected single call, got %d", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour, Factor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(int) (bool, error) {
		return true, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
