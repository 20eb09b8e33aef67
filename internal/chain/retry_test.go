package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}

func TestWithRetryStopsAtLimit(t *testing.T) {
	attempts := 0
	want := errors.New("down")
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("error mismatch: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}

func TestWithRetryHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel, got %v", err)
	}
}

type codedError struct {
	code int
}

func (e codedError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestWithRetryStopsOnPermanentErrors(t *testing.T) {
	cases := map[string]error{
		"reverted":           fmt.Errorf("wait 0xabc: %w", ErrReverted),
		"revert message":     errors.New("execution reverted: STF"),
		"revert code":        codedError{code: 3},
		"invalid params":     codedError{code: -32602},
		"insufficient funds": errors.New("insufficient funds for gas * price + value"),
		"wallet":             fmt.Errorf("%w: 0x01", ErrWalletNotFound),
		"deadline":           fmt.Errorf("call balanceOf: %w", context.DeadlineExceeded),
	}
	for name, want := range cases {
		attempts := 0
		err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
			attempts++
			return want
		})
		if !errors.Is(err, want) {
			t.Fatalf("%s: error mismatch: %v", name, err)
		}
		if attempts != 1 {
			t.Fatalf("%s: permanent error retried %d times", name, attempts)
		}
	}
}

func TestWithRetryRetriesTransportErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return codedError{code: -32000}
		}
		if attempts == 2 {
			return errors.New("dial tcp 127.0.0.1:8545: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}
