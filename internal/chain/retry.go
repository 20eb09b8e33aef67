package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

const maxRetryDelay = 5 * time.Second

// JSON-RPC codes that a retry cannot change.
const (
	rpcCodeExecutionReverted = 3
	rpcCodeMethodNotFound    = -32601
	rpcCodeInvalidParams     = -32602
)

// withRetry runs fn until it succeeds, fails permanently, or maxRetries retries are spent.
// The delay doubles after each attempt, up to maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// retryable reports whether err may clear on its own. Reverts, cancellation, missing
// wallets, and balance shortfalls are permanent.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrReverted) || errors.Is(err, ErrWalletNotFound) || IsInsufficientFunds(err) {
		return false
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeExecutionReverted, rpcCodeMethodNotFound, rpcCodeInvalidParams:
			return false
		}
	}
	return !strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
