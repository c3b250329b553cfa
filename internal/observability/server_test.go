package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestServer_MetricsIncludeRegisteredCollectors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "goguard_test_total", Help: "test"})
	server.Registry().MustRegister(counter)
	counter.Inc()

	code, body := get(t, server.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "goguard_test_total 1")
}

func TestServer_Readiness(t *testing.T) {
	var failing bool
	server := NewServer("127.0.0.1:0", func(context.Context) error {
		if failing {
			return errors.New("store down")
		}
		return nil
	}, nil)

	code, body := get(t, server.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", strings.TrimSpace(body))

	failing = true
	code, body = get(t, server.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", strings.TrimSpace(body))

	code, _ = get(t, server.Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code, "liveness ignores dependencies")
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	assert.Empty(t, server.Addr())

	errCh, err := server.Start()
	require.NoError(t, err)
	_, err = server.Start()
	assert.Error(t, err, "double start")

	resp, err := http.Get("http://" + server.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open, "error channel closes on graceful stop")
}
