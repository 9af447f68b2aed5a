package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
)

type callResult struct {
	raw models.RawResponse
	err error
}

// CallWithTimeout runs p.Analyze under its own deadline. When the deadline fires
// the call's context is cancelled, which aborts the in-flight request, and the
// function returns ErrTimeout without waiting for the call to unwind.
func CallWithTimeout(ctx context.Context, p Provider, req Request, timeout time.Duration) (models.RawResponse, error) {
	if timeout <= 0 {
		return p.Analyze(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)

	done := make(chan callResult, 1)
	go func() {
		raw, err := p.Analyze(callCtx, req)
		done <- callResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		cancel()
		if res.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, res.err)
		}
		return res.raw, res.err
	case <-callCtx.Done():
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
