package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewServerAppliesConfig(t *testing.T) {
	h := http.NotFoundHandler()
	srv := NewServer(DefaultServerConfig(":9999"), h)
	require.Equal(t, ":9999", srv.Addr)
	require.Equal(t, 60*time.Second, srv.WriteTimeout)
	require.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
}

func TestMetricsServerExposesRegistry(t *testing.T) {
	srv := NewMetricsServer(":0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
