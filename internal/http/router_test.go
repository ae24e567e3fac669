package http

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/render"
	"github.com/kjstillabower/weather-viz-service/internal/service"
)

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(t, &fakeFetcher{body: currentBody}, nil, nil)

	allowed := do(t, h, "/conditions?lat=1&lon=2", "Origin", "https://app.example.com")
	require.Equal(t, http.StatusOK, allowed.Code)
	assert.Equal(t, "https://app.example.com", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := do(t, h, "/conditions?lat=1&lon=2", "Origin", "https://evil.example.com")
	require.Equal(t, http.StatusOK, denied.Code)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_NoAllowedOriginsOmitsCORS(t *testing.T) {
	sel, err := client.NewEndpointSelector("https://forecast.test/v1/forecast", "https://archive.test/v1/archive")
	require.NoError(t, err)
	svc := service.NewWeatherService(sel, &fakeFetcher{body: currentBody})
	h := NewHandler(svc, &stubRenderer{}, &render.ClientDelegatedRenderer{Series: svc}, nil, zap.NewNop())
	router := NewRouter(h, zap.NewNop(), RouterConfig{RequestTimeout: 5 * time.Second})

	w := do(t, router, "/conditions?lat=1&lon=2", "Origin", "https://evil.example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Gzip(t *testing.T) {
	// Large enough payload to clear the gzip minimum size.
	chart := &stubRenderer{}
	chart.res.ContentType = "image/svg+xml"
	chart.res.Body = []byte("<svg>" + strings.Repeat("<rect/>", 500) + "</svg>")
	h := newTestRouter(t, &fakeFetcher{}, chart, nil)

	w := do(t, h, "/chart?lat=1&lon=2", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, chart.res.Body, plain)
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(t, &fakeFetcher{}, nil, nil)
	w := do(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "httpRequestsInFlight")
}

func TestRouter_UnknownPath(t *testing.T) {
	h := newTestRouter(t, &fakeFetcher{}, nil, nil)
	w := do(t, h, "/weather/seattle")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, &fakeFetcher{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/chart?lat=1&lon=2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
