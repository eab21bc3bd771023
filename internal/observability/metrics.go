package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "trips_submitted_total", Help: "Total trips submitted"})
	TripsExpiredTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "trips_expired_total", Help: "Total trips expired by the sweep"})

	MatchesServedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "matches_served_total", Help: "Total match searches served"})
	MatchCandidates    = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kigali_rides",
		Name:      "match_candidates",
		Help:      "Candidates returned per search",
		Buckets:   []float64{0, 1, 2, 5, 10, 20},
	})

	BookingsCreatedTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "bookings_created_total", Help: "Total bookings created"})
	BookingConflictsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "booking_conflicts_total", Help: "Total booking attempts that lost the race"})
	BookingsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "bookings_cancelled_total", Help: "Total bookings cancelled"})

	HandoffsTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "whatsapp_handoffs_total", Help: "Total successful WhatsApp handoffs"})
	HandoffFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "kigali_rides", Name: "whatsapp_handoff_failures_total", Help: "Total failed WhatsApp handoffs"})

	ReferralsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kigali_rides", Name: "referrals_resolved_total", Help: "Referral resolutions by outcome"},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kigali_rides", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kigali_rides",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
