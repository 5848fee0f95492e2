package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_RecordForward(t *testing.T) {
	r := NewRegistry()

	r.RecordForward("transaction", StatusSuccess, time.Millisecond)
	r.RecordForward("transaction", StatusSuccess, time.Millisecond)
	r.RecordForward("block", StatusNotReady, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forwardTotal.WithLabelValues("transaction", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forwardTotal.WithLabelValues("block", StatusNotReady)))
}

func TestRegistry_RecordPublish(t *testing.T) {
	r := NewRegistry()

	r.RecordPublish("rawtx", 250, time.Millisecond, nil)
	r.RecordPublish("rawtx", 250, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishTotal.WithLabelValues("rawtx", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishTotal.WithLabelValues("rawtx", StatusError)))
}

func TestRegistry_RecordReceived(t *testing.T) {
	r := NewRegistry()

	r.RecordReceived("hashblock", 0)
	r.RecordReceived("hashblock", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.receivedTotal.WithLabelValues("hashblock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sequenceGaps.WithLabelValues("hashblock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.missedMessages.WithLabelValues("hashblock")))
}

func TestServer_Endpoints(t *testing.T) {
	r := NewRegistry()
	r.SetSystemInfo("test", "tcp://127.0.0.1:28332")
	s := NewServer(ServerConfig{Port: 0, Timeout: time.Second}, r, zap.NewNop())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "notify_system_info")
	assert.Contains(t, string(body), "notify_start_time_seconds")
}

func TestServer_ReadinessChecks(t *testing.T) {
	s := NewServer(ServerConfig{Timeout: time.Second}, NewRegistry(), zap.NewNop())

	var bridgeErr error
	s.AddReadinessCheck("bridge", func() error { return bridgeErr })

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ready := func() (int, probeResponse) {
		resp, err := http.Get(srv.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body probeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := ready()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"bridge": "ok"}, body.Checks)

	bridgeErr = errors.New("bridge closed")
	code, body = ready()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]string{"bridge": "bridge closed"}, body.Checks)
}
