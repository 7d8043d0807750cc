package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/metrics"
	"github.com/roaddamage/report-gateway/internal/models"
)

// Counter counts stored reports
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsAggregator computes statistics over the report collection
type StatsAggregator struct {
	store Counter
}

// NewStatsAggregator creates an aggregator backed by store
func NewStatsAggregator(store Counter) *StatsAggregator {
	return &StatsAggregator{store: store}
}

// Summary returns the report total.
// A failing count is logged and reported as a zero total flagged Degraded.
// TODO: add per-gravite and per-statut breakdowns once the admin dashboard consumes them.
func (a *StatsAggregator) Summary(ctx context.Context) models.Summary {
	total, err := a.store.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count reports")
		metrics.RecordDegradedRead("count")
		return models.Summary{Degraded: true}
	}
	return models.Summary{Total: total}
}
