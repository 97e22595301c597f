package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "matching_engine"

// Metrics groups every collector of one process. Create it once with New and
// pass it down; collectors are registered on the given registry.
type Metrics struct {
	Registry *prometheus.Registry

	CommandsTotal     *prometheus.CounterVec
	CommandsMalformed prometheus.Counter
	CommandsDuplicate prometheus.Counter
	CommandSeconds    *prometheus.HistogramVec
	ExecutionsTotal   *prometheus.CounterVec
	TradesTotal       prometheus.Counter
	EventsDropped     *prometheus.CounterVec
	PublishFailures   *prometheus.CounterVec
	RecordsWritten    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by message type.",
		}, []string{"type"}),
		CommandsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_malformed_total",
			Help:      "Inbound messages that could not be decoded and were skipped.",
		}),
		CommandsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_duplicate_total",
			Help:      "Redelivered commands skipped by message id.",
		}),
		CommandSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent processing one command.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"type"}),
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execution reports emitted, by exec type.",
		}, []string{"exec_type"}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Matches produced.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the publish queue was full.",
		}, []string{"channel"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Events the transport failed to deliver.",
		}, []string{"channel"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Persistence records written to the database, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.CommandsMalformed,
		m.CommandsDuplicate,
		m.CommandSeconds,
		m.ExecutionsTotal,
		m.TradesTotal,
		m.EventsDropped,
		m.PublishFailures,
		m.RecordsWritten,
	)
	return m
}

// Serve exposes the registry on addr until ctx is done. An empty addr
// disables the endpoint.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.S().Infof("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Errorf("metrics server: %v", err)
	}
}
