package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a metric
// matching the given name, partial label pattern, and value. Uses regex to
// handle extra OTel scope labels injected by the Prometheus exporter.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewProvider(t *testing.T) {
	t.Run("Success_CreateProvider", func(t *testing.T) {
		provider, err := NewProvider("registrations")

		require.NoError(t, err)
		assert.NotNil(t, provider)
		assert.NotNil(t, provider.MeterProvider())
		assert.NotNil(t, provider.Handler())
	})

	t.Run("Success_ShutdownProvider", func(t *testing.T) {
		provider, err := NewProvider("registrations")
		require.NoError(t, err)

		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}

func TestBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("registrations")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "registrations")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "registration", "entry_create", "success")
	bm.RecordOperation(ctx, "registration", "entry_create", "success")
	bm.RecordOperation(ctx, "registration", "vault_store", "error")
	bm.RecordDuration(ctx, "registration", "entry_create", 12*time.Millisecond, "success")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)

	output := w.Body.String()

	assertMetricLine(
		t,
		output,
		`registrations_operations_total`,
		`domain="registration".*operation="entry_create".*status="success"`,
		`2`,
	)
	assertMetricLine(
		t,
		output,
		`registrations_operations_total`,
		`domain="registration".*operation="vault_store".*status="error"`,
		`1`,
	)
	assertMetricLine(
		t,
		output,
		`registrations_operation_duration_seconds_count`,
		`domain="registration".*operation="entry_create".*status="success"`,
		`1`,
	)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	bm := NewNoOpBusinessMetrics()

	assert.NotNil(t, bm)

	// Should not panic or record anything.
	bm.RecordOperation(context.Background(), "registration", "entry_create", "success")
	bm.RecordDuration(context.Background(), "registration", "entry_create", time.Millisecond, "error")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("registrations")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "registrations"))
	router.GET("/v1/registrations/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/registrations/UR-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)

	output := w.Body.String()

	assertMetricLine(
		t,
		output,
		`registrations_http_requests_total`,
		`method="GET".*path="/v1/registrations/:id".*status_code="200"`,
		`1`,
	)
}
