// internal/auction/metrics.go
package auction

import (
	"context"

	"carmarket/internal/market"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type instruments struct {
	bids          metric.Int64Counter
	finalizations metric.Int64Counter
}

func newInstruments(log logrus.FieldLogger) instruments {
	meter := otel.Meter("carmarket/auction")

	bids, err := meter.Int64Counter("carmarket.auction.bids",
		metric.WithDescription("Bid attempts by result and error kind."),
		metric.WithUnit("{bid}"),
	)
	if err != nil {
		log.WithError(err).Warn("bid counter unavailable")
		bids = noop.Int64Counter{}
	}

	finalizations, err := meter.Int64Counter("carmarket.auction.finalizations",
		metric.WithDescription("Finalization calls by outcome."),
		metric.WithUnit("{auction}"),
	)
	if err != nil {
		log.WithError(err).Warn("finalization counter unavailable")
		finalizations = noop.Int64Counter{}
	}

	return instruments{bids: bids, finalizations: finalizations}
}

func (m instruments) bidAccepted(ctx context.Context) {
	m.bids.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "accepted")))
}

func (m instruments) bidRejected(ctx context.Context, err error) {
	m.bids.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", "rejected"),
		attribute.String("kind", string(market.KindOf(err))),
	))
}

func (m instruments) finalized(ctx context.Context, outcome Outcome) {
	m.finalizations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}
