package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const linkedDevicesTimeout = 2 * time.Second

var (
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)
	WorkoutsNormalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workouts_normalized_total",
			Help: "Total workout payloads normalized by ingest path.",
		},
		[]string{"path"},
	)
	PollSyncFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_sync_failures_total",
			Help: "Total per-device poll sync failures.",
		},
	)
	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Total workout.ingested publish failures.",
		},
	)
	LinkedDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linked_devices",
			Help: "Devices currently linked and eligible for polling.",
		},
	)
	MetricsScrapeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metrics_scrape_errors_total",
			Help: "Total metrics scrape errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WebhookRequests,
		WorkoutsNormalized,
		PollSyncFailures,
		EventPublishFailures,
		LinkedDevices,
		MetricsScrapeErrors,
	)
}

// Handler serves the Prometheus scrape endpoint, refreshing the
// linked-devices gauge on every scrape.
func Handler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		updateLinkedDevices(db)
		promhttp.Handler().ServeHTTP(w, r)
	})
}

func updateLinkedDevices(db *sql.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), linkedDevicesTimeout)
	defer cancel()

	var linked int64
	if err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM user_devices WHERE status = 'linked'",
	).Scan(&linked); err != nil {
		MetricsScrapeErrors.Inc()
		return
	}

	LinkedDevices.Set(float64(linked))
}
