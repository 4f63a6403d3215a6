package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AttemptsRecorded counts attempt submissions by outcome.
	AttemptsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_recorded_total",
			Help: "Attempt submissions by outcome",
		},
		[]string{"status"}, // ok, invalid, unauthenticated, not_found, error
	)

	LeaderboardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_leaderboard_compute_seconds",
			Help:    "Time spent recomputing the leaderboard from stored attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LeaderboardSubscribers tracks open websocket leaderboard feeds.
	LeaderboardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_leaderboard_subscribers_current",
			Help: "Current number of leaderboard feed subscribers",
		},
	)

	QuestionFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_question_fetches_total",
			Help: "Upstream question batch requests by outcome",
		},
		[]string{"outcome"}, // ok, rate_limited, unavailable
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_finished_total",
			Help: "Quiz sessions reaching a terminal state",
		},
		[]string{"reason"}, // completed, timeout, abandoned
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
