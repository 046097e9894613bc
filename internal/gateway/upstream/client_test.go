package upstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/platform/metrics"
	"taskflow/pkg/platform/circuit"
	request "taskflow/pkg/platform/middleware/request"
	"taskflow/pkg/platform/sentinel"
	"taskflow/pkg/requestcontext"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string, m *metrics.Metrics) *Client {
	t.Helper()
	c, err := NewClient("task-service", baseURL, time.Second, WithLogger(discard()), WithMetrics(m))
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("task-service", "not a url", time.Second)
	require.Error(t, err)
	_, err = NewClient("task-service", "/relative", time.Second)
	require.Error(t, err)
}

func TestForwardRelaysStatusAndHeaders(t *testing.T) {
	var seen *http.Request
	var body []byte
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation_error"}`))
	}))
	defer backend.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := newTestClient(t, backend.URL, m)

	in := httptest.NewRequest(http.MethodPatch, "/gateway/tasks/t1?x=1", http.NoBody)
	in.Header.Set("Authorization", "Bearer secret")
	in = in.WithContext(requestcontext.WithRequestID(in.Context(), "corr-1"))
	rr := httptest.NewRecorder()
	c.Forward(rr, in, "/tasks/t1")

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"error":"validation_error"}`, rr.Body.String())
	require.NotNil(t, seen)
	assert.Equal(t, http.MethodPatch, seen.Method)
	assert.Equal(t, "/tasks/t1", seen.URL.Path)
	assert.Equal(t, "1", seen.URL.Query().Get("x"))
	assert.Empty(t, seen.Header.Get("Authorization"))
	assert.Equal(t, "corr-1", seen.Header.Get(request.HeaderCorrelationID))
	assert.Empty(t, body)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("task-service", "4xx")))
}

func TestForwardTransportFailureIsBadGateway(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := newTestClient(t, url, m)
	rr := httptest.NewRecorder()
	c.Forward(rr, httptest.NewRequest(http.MethodGet, "/tasks/t1", nil), "/tasks/t1")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "bad_gateway")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("task-service", "error")))
}

func TestTaskLookup(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks/t1":
			_, _ = w.Write([]byte(`{"id":"t1","projectId":"p1","title":"x"}`))
		case "/tasks/blank":
			_, _ = w.Write([]byte(`{"id":"blank"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	lookup := NewTaskLookup(newTestClient(t, backend.URL, nil), nil)

	projectID, err := lookup.ProjectIDForTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)

	_, err = lookup.ProjectIDForTask(context.Background(), "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = lookup.ProjectIDForTask(context.Background(), "blank")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestTaskLookupOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	healthy := atomic.Bool{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"projectId":"p1"}`))
	}))
	defer backend.Close()

	now := time.Unix(1_700_000_000, 0)
	breaker := circuit.New("task-service",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	lookup := NewTaskLookup(newTestClient(t, backend.URL, nil), breaker)
	ctx := context.Background()

	for range 2 {
		_, err := lookup.ProjectIDForTask(ctx, "t1")
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := lookup.ProjectIDForTask(ctx, "t1")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the upstream")

	healthy.Store(true)
	now = now.Add(time.Minute)
	projectID, err := lookup.ProjectIDForTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)
	assert.False(t, breaker.IsOpen())
}
