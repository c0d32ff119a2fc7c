// internal/store/retry.go
package store

import (
	"context"
	"fmt"
	"time"

	"carmarket/internal/market"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAttempts bounds how many fresh transactions a unit of work gets
// when the database reports serialization or lock conflicts.
const DefaultMaxAttempts = 8

const baseRetryDelay = 5 * time.Millisecond

var tracer = otel.Tracer("carmarket/store")

// RetryPolicy decides which errors are transient for an adapter.
type RetryPolicy struct {
	MaxAttempts int
	IsTransient func(error) bool
}

// Run executes attempt until it succeeds, fails permanently, or the attempt
// budget is exhausted. attempt must begin and finish its own transaction.
// Errors without a domain kind are wrapped as market store failures.
func (p RetryPolicy) Run(ctx context.Context, driver string, attempt func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "store.tx",
		trace.WithAttributes(attribute.String("db.system", driver)),
	)
	defer span.End()

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return market.StoreFailure(err)
		}
		err := attempt(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("tx.attempts", i+1))
			return nil
		}
		if p.IsTransient == nil || !p.IsTransient(err) {
			span.SetAttributes(attribute.Int("tx.attempts", i+1))
			if market.KindOf(err) == market.KindStoreFailure {
				span.RecordError(err)
				span.SetStatus(codes.Error, "transaction failed")
			}
			return market.StoreFailure(err)
		}
		lastErr = err
		span.AddEvent("tx.retry", trace.WithAttributes(attribute.Int("tx.attempt", i+1)))

		timer := time.NewTimer(baseRetryDelay * time.Duration(1<<min(i, 5)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return market.StoreFailure(ctx.Err())
		case <-timer.C:
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	return market.StoreFailure(fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr))
}
