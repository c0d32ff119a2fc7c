// internal/store/sqlstore/events.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("carmarket/sqlstore")

const eventColumns = `id, auction_id, event_type, event_data, version, created_at`

type events struct{ t *Tx }

// Append checks the version inside the caller's transaction; the unique
// (auction_id, version) index catches a writer that slipped in between.
func (r events) Append(ctx context.Context, auctionID uuid.UUID, expectedVersion int, evs ...*market.AuctionEvent) error {
	ctx, span := tracer.Start(ctx, "events.append", trace.WithAttributes(
		attribute.String("auction.id", auctionID.String()),
		attribute.Int("expected.version", expectedVersion),
		attribute.Int("event.count", len(evs)),
	))
	defer span.End()

	current, err := r.CurrentVersion(ctx, auctionID)
	if err != nil {
		return err
	}
	if current != expectedVersion {
		span.SetAttributes(attribute.Int("actual.version", current), attribute.Bool("conflict.detected", true))
		return fmt.Errorf("%w: auction %s log is at version %d, expected %d", store.ErrConflict, auctionID, current, expectedVersion)
	}

	for i, e := range evs {
		version := expectedVersion + i + 1
		var id int64
		err := r.t.queryRow(ctx, `
			INSERT INTO auction_events (auction_id, event_type, event_data, version, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`,
			auctionID, string(e.Type), string(e.Data), version, toMillis(e.CreatedAt),
		).Scan(&id)
		if err != nil {
			if r.t.d.IsUniqueViolation != nil && r.t.d.IsUniqueViolation(err) {
				return fmt.Errorf("%w: auction %s version %d already written", store.ErrConflict, auctionID, version)
			}
			return fmt.Errorf("insert %s event: %w", e.Type, err)
		}
		e.ID, e.AuctionID, e.Version = id, auctionID, version
		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", id),
			attribute.Int("event.version", version),
			attribute.String("event.type", string(e.Type)),
		))
	}
	return nil
}

func (r events) CurrentVersion(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var version int
	err := r.t.queryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM auction_events WHERE auction_id = ?`, auctionID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("current version of auction %s: %w", auctionID, err)
	}
	return version, nil
}

func (r events) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*market.AuctionEvent, error) {
	return r.list(ctx, `
		SELECT `+eventColumns+` FROM auction_events
		WHERE auction_id = ?
		ORDER BY version ASC`, auctionID)
}

func (r events) Stream(ctx context.Context, afterID int64, limit int) ([]*market.AuctionEvent, error) {
	return r.list(ctx, `
		SELECT `+eventColumns+` FROM auction_events
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?`, afterID, limit)
}

func (r events) list(ctx context.Context, query string, args ...any) ([]*market.AuctionEvent, error) {
	rows, err := r.t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query auction events: %w", err)
	}
	defer rows.Close()

	var out []*market.AuctionEvent
	for rows.Next() {
		var e market.AuctionEvent
		var eventType string
		var data []byte
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.AuctionID, &eventType, &data, &e.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan auction event: %w", err)
		}
		e.Type = market.AuctionEventType(eventType)
		e.Data = data
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auction events: %w", err)
	}
	return out, nil
}
