package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/seed-web/internal/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	require.True(t, ok)
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", sc.TraceID().String())
	assert.Equal(t, "0000000000000001", sc.SpanID().String())
	assert.True(t, sc.IsSampled())
	assert.True(t, sc.IsRemote())

	sc, ok = parseCloudTraceContext("105445aa7843bc8bf206b12000100000/258")
	require.True(t, ok)
	assert.Equal(t, "0000000000000102", sc.SpanID().String())
	assert.False(t, sc.IsSampled())

	for _, header := range []string{
		"",
		"not-a-trace",
		"105445aa/1;o=1",
		"105445aa7843bc8bf206b12000100000/0;o=1",
		"105445aa7843bc8bf206b12000100000/abc",
		"zz5445aa7843bc8bf206b12000100000/1",
	} {
		_, ok := parseCloudTraceContext(header)
		assert.False(t, ok, header)
	}
}

func TestFormatCloudTraceHeader(t *testing.T) {
	info := requestctx.TraceInfo{TraceID: "abc", SpanID: "def", Sampled: true}
	assert.Equal(t, "abc/def;o=1", formatCloudTraceHeader(info))
	info.Sampled = false
	assert.Equal(t, "abc/def;o=0", formatCloudTraceHeader(info))
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var info requestctx.TraceInfo
	var found bool
	h := TraceMiddleware("seed-project")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, found = requestctx.Trace(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, found)
	assert.Equal(t, "seed-project", info.ProjectID)
}

func TestNilMetricsDiscard(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad("file", "ok")
		m.ObserveOperation("toggle")
		m.ObserveLayout(0)
		m.SetViewers(3)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveLoad("file", "ok")
	m.ObserveOperation("toggle")
	m.ObserveOperation("toggle")
	m.SetViewers(2)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `seed_web_navigator_loads_total{result="ok",scheme="file"} 1`)
	assert.Contains(t, text, `seed_web_navigator_operations_total{op="toggle"} 2`)
	assert.Contains(t, text, "seed_web_navigator_viewers 2")
	assert.Contains(t, text, "seed_web_navigator_layout_seconds_bucket")
}

func TestRequestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := InjectLoggerMiddleware(zap.New(core))(
		RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestctx.Logger(r.Context()).Debug("inside")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("missing"))
		})),
	)

	req := httptest.NewRequest(http.MethodPost, "/strains/tree/expand-all", nil)
	req.Header.Set("HX-Request", "true")
	req = req.WithContext(requestctx.WithViewer(context.Background(), "01VIEWER"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "inside", entries[0].Message)
	assert.Equal(t, "01VIEWER", entries[0].ContextMap()["viewer_id"])

	done := entries[1]
	assert.Equal(t, "request completed", done.Message)
	assert.Equal(t, zapcore.WarnLevel, done.Level)
	fields := done.ContextMap()
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, "/strains/tree/expand-all", fields["route"])
	assert.Equal(t, true, fields["htmx"])
	assert.EqualValues(t, len("missing"), fields["bytes"])
}

func TestFromContextDefaultsToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	logger := zap.NewExample()
	assert.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
}
