package metrics

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		FetchesTotal,
		StaleRepliesTotal,
		FetchDuration,
		AppliesTotal,
		RetargetGapsTotal,
		StoreWritesTotal,
		SavedConfigurations,
		IPCRequestsTotal,
	}
	for _, c := range collectors {
		desc := make(chan *prometheus.Desc, 1)
		c.Describe(desc)
		close(desc)
		require.NotNil(t, <-desc)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(AppliesTotal.WithLabelValues("temporary", ResultOK))
	AppliesTotal.WithLabelValues("temporary", ResultOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AppliesTotal.WithLabelValues("temporary", ResultOK)))

	before = testutil.ToFloat64(StaleRepliesTotal)
	StaleRepliesTotal.Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(StaleRepliesTotal))

	SavedConfigurations.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(SavedConfigurations))
}

func TestServeExposesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	SavedConfigurations.Set(5)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "dispswitch_saved_configurations 5"))

	cancel()
	require.NoError(t, <-done)
}
