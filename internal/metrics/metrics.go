// Package metrics exposes build metrics for the serve-mode /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openarcade/gameshelf/internal/domain"
)

var (
	// BuildsTotal counts finished batches by overall result.
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameshelf_builds_total",
			Help: "Total number of build batches, by overall result.",
		},
		[]string{"status"}, // success / failed
	)

	// GamesBuiltTotal counts per-game outcomes across all batches.
	GamesBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameshelf_games_built_total",
			Help: "Total number of per-game build outcomes, by kind.",
		},
		[]string{"kind"}, // success / failed / skipped
	)

	// LastBuildDuration reports the wall-clock duration of the most recent batch.
	LastBuildDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gameshelf_last_build_duration_seconds",
			Help: "Duration of the most recent build batch in seconds.",
		},
	)

	// LastBuildGames reports how many games the most recent batch processed.
	LastBuildGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gameshelf_last_build_games",
			Help: "Number of games processed by the most recent build batch.",
		},
	)
)

// ObserveReport records a finished batch.
func ObserveReport(r *domain.BatchReport) {
	status := "success"
	if !r.Success {
		status = "failed"
	}
	BuildsTotal.WithLabelValues(status).Inc()

	for _, out := range r.Outcomes {
		GamesBuiltTotal.WithLabelValues(string(out.Kind)).Inc()
	}

	LastBuildDuration.Set(r.Duration.Seconds())
	LastBuildGames.Set(float64(r.Total))
}
