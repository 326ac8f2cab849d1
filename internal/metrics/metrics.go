package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry concentra as métricas do gateway, separado do registry global
var Registry = prometheus.NewRegistry()

// Prometheus metrics
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_gateway_requests_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"outcome"},
	)
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_gateway_upstream_duration_seconds",
			Help:    "Duration of automation webhook calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms a ~51s
		},
		[]string{"result"},
	)
	rateRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_gateway_rate_records",
			Help: "Number of client rate records currently tracked",
		},
	)
	sweptRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_gateway_swept_records_total",
			Help: "Total number of stale rate records removed by the sweeper",
		},
	)
)

func init() {
	Registry.MustRegister(
		requestsTotal,
		upstreamDuration,
		rateRecords,
		sweptRecords,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler expõe o registry no formato de exposição do Prometheus
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequest contabiliza o desfecho de um turno de chat
func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream registra a duração de uma chamada ao webhook
func ObserveUpstream(result string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func SetRateRecords(n int) {
	rateRecords.Set(float64(n))
}

func AddSweptRecords(n int) {
	sweptRecords.Add(float64(n))
}
