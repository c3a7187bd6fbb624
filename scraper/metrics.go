package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetch client and the
// scraping stages.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	DroppedTotal      *prometheus.CounterVec
	ThrottleDelay     prometheus.Gauge
	DescriptionsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers the scraper metrics on registry so one
// endpoint can serve both the scraper and the pipeline stages.
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listings_scraped_total",
			Help: "Total number of listings parsed from result pages.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_dropped_total",
			Help: "Listings dropped while building a snapshot, by reason.",
		},
		[]string{"reason"},
	)
	throttle := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_throttle_delay_seconds",
			Help: "Current adaptive delay added before each request.",
		},
	)
	descriptions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_descriptions_total",
			Help: "Candidate description fetches by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, retries, errorsTotal, dropped, throttle, descriptions)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		DroppedTotal:      dropped,
		ThrottleDelay:     throttle,
		DescriptionsTotal: descriptions,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddItems adds n to the listings scraped counter.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncDropped counts a listing dropped for reason.
func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedTotal.WithLabelValues(reason).Inc()
}

// SetThrottle records the current adaptive delay.
func (m *Metrics) SetThrottle(d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleDelay.Set(d.Seconds())
}

// IncDescription counts a description fetch outcome.
func (m *Metrics) IncDescription(outcome string) {
	if m == nil {
		return
	}
	m.DescriptionsTotal.WithLabelValues(outcome).Inc()
}
