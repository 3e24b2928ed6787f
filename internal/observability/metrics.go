// Package observability exposes Prometheus metrics and a localhost-only
// debug server for the simulation and protocol layers. Grounded on
// internal/api/observability.go, repointed from game-render metrics at
// protocol-level ones: snapshot encode timing and size, reconciliation
// corrections, keyframe requests, baseline mismatches, and tick duration.
package observability

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carry only bounded-cardinality labels, same DoS-prevention
// discipline as the teacher's observability.go: never label by peer id
// or entity id.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duelnet_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02},
	})

	snapshotEncodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duelnet_snapshot_encode_duration_seconds",
		Help:    "Time spent encoding one peer's snapshot",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})

	snapshotBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duelnet_snapshot_bytes",
		Help:    "Size in bytes of encoded snapshots actually sent",
		Buckets: []float64{32, 64, 128, 256, 512, 1024, 1400},
	})

	keyframeRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_keyframe_requests_total",
		Help: "Total request_full_snapshot RPCs received",
	})

	baselineMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_baseline_mismatch_total",
		Help: "Total snapshot decodes rejected due to an unknown baseline",
	})

	reconcileCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_reconcile_corrections_total",
		Help: "Total client-side prediction corrections applied (error over threshold)",
	})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duelnet_connections_active",
		Help: "Currently connected peers",
	})

	connectionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duelnet_connection_rejected_total",
		Help: "Connections rejected before upgrade completed",
	}, []string{"reason"}) // bounded: "ip_limit", "total_limit", "origin"

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duelnet_world_entity_count",
		Help: "Current number of live entities in the world",
	})
)

// RecordTick records one simulation tick's wall-clock duration.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// RecordSnapshotEncode records one peer-snapshot encode's duration and
// resulting wire size.
func RecordSnapshotEncode(d time.Duration, bytes int) {
	snapshotEncodeDuration.Observe(d.Seconds())
	snapshotBytes.Observe(float64(bytes))
}

// IncKeyframeRequest increments the keyframe-request counter.
func IncKeyframeRequest() { keyframeRequestsTotal.Inc() }

// IncBaselineMismatch increments the baseline-mismatch counter.
func IncBaselineMismatch() { baselineMismatchTotal.Inc() }

// IncReconcileCorrection increments the prediction-correction counter.
func IncReconcileCorrection() { reconcileCorrectionsTotal.Inc() }

// SetConnectionsActive sets the active-connection gauge.
func SetConnectionsActive(n int) { connectionsActive.Set(float64(n)) }

// RecordConnectionRejected increments the rejection counter for reason,
// which must be one of the bounded values documented on the metric.
func RecordConnectionRejected(reason string) { connectionRejectedTotal.WithLabelValues(reason).Inc() }

// SetEntityCount sets the world entity-count gauge.
func SetEntityCount(n int) { entityCount.Set(float64(n)) }

// Config configures the debug server.
type Config struct {
	Enabled       bool
	ListenAddr    string // MUST be loopback-only in production
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultConfig returns safe, loopback-only defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the pprof + /metrics + /health debug server.
// CRITICAL: always binds to loopback unless ALLOW_DEBUG_EXTERNAL=true is
// set explicitly, mirroring internal/api/observability.go's guard.
func StartDebugServer(cfg Config) error {
	if !cfg.Enabled {
		log.Println("📊 debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ debug server forced to loopback for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
