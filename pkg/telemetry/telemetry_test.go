package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "uxy", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), "", "")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", false)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "dev").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["message"])
	require.Equal(t, "dev", line["stage"])

	_, err = NewLogger(&buf, "loud", false)
	require.Error(t, err)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveDeployment("dev", "finished", 2*time.Second)
	m.ObserveDeployment("dev", "finished", time.Second)
	m.ObserveAction("persistent_menu")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Deployments.WithLabelValues("dev", "finished")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Actions.WithLabelValues("persistent_menu")))

	var nilMetrics *Metrics
	nilMetrics.ObserveAction("get_started")
}

func TestMetricsPush(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewMetrics()
	m.ObserveDeployment("prod", "cancelled", time.Second)
	require.NoError(t, m.Push(context.Background(), server.URL, "uxy"))
	require.Equal(t, "/metrics/job/uxy", path)
}
