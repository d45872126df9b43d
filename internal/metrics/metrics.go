package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Display service metrics
var (
	// FetchesTotal counts state fetches by result (ok, unavailable, identity_error)
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispswitch_fetches_total",
			Help: "Display state fetches by result",
		},
		[]string{"result"},
	)

	// StaleRepliesTotal counts fetch replies discarded because a newer fetch was issued
	StaleRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispswitch_stale_replies_total",
			Help: "Fetch replies discarded because a newer fetch had been issued",
		},
	)

	// FetchDuration tracks how long the display service takes to answer a fetch
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispswitch_fetch_duration_seconds",
			Help:    "Display state fetch duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// AppliesTotal counts apply requests by method and result
	AppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispswitch_applies_total",
			Help: "Configuration applies by method and result",
		},
		[]string{"method", "result"},
	)

	// RetargetGapsTotal counts saved monitor assignments dropped during retargeting
	RetargetGapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispswitch_retarget_gaps_total",
			Help: "Saved monitor assignments with no live display during apply",
		},
	)
)

// Configuration store metrics
var (
	// StoreWritesTotal counts store saves by result
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispswitch_store_writes_total",
			Help: "Configuration store writes by result",
		},
		[]string{"result"},
	)

	// SavedConfigurations is the number of configurations in the repository
	SavedConfigurations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispswitch_saved_configurations",
			Help: "Number of saved display configurations",
		},
	)
)

// IPC metrics
var (
	// IPCRequestsTotal counts daemon requests by command and status
	IPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispswitch_ipc_requests_total",
			Help: "IPC requests handled by command and status",
		},
		[]string{"command", "status"},
	)
)

// Result label values shared by the counters above.
const (
	ResultOK            = "ok"
	ResultError         = "error"
	ResultUnavailable   = "unavailable"
	ResultIdentityError = "identity_error"
)

// Serve exposes the default registry on addr under /metrics until ctx is
// cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
