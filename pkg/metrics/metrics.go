package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics, registered with the default registry through promauto.

var (
	// Polls issued against each stream by views.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronograph_polls_total",
			Help: "Total number of change-tracking polls, per stream",
		},
		[]string{"stream"},
	)

	// Intervals reported by polls, split into added and removed.
	DeltaIntervalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronograph_delta_intervals_total",
			Help: "Total number of intervals reported in poll deltas",
		},
		[]string{"stream", "change"}, // change: added | removed
	)

	// Indexed intervals per stream of the live network.
	Intervals = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chronograph_intervals",
			Help: "Number of intervals indexed per stream",
		},
		[]string{"stream"},
	)

	// Wall time of a full view poll (all streams in parallel).
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "chronograph_poll_duration_seconds",
			Help: "Duration of a view poll across all streams",
			// From tens of microseconds (tiny networks) to a frame budget.
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	// Checked insertions rejected by the attribute store.
	ValidationErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronograph_validation_errors_total",
			Help: "Total number of rejected checked insertions",
		},
	)

	// Frames delivered by players.
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronograph_frames_total",
			Help: "Total number of frames produced by playback",
		},
	)
)
