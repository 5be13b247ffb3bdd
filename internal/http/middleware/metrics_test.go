package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersInflightAndPathLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Parameterised route: the metric label must be the route pattern so a
	// webhook flood across many bots stays on a single series.
	r.POST("/webhook/telegram/:botId", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	})

	// Bodiless response: writer size stays -1 and the size histogram is skipped.
	r.GET("/readyz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines, in case other tests in the package already touched the series.
	baseHook := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook/telegram/:botId", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	for _, bot := range []string{"bot-a", "bot-b"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/telegram/"+bot, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("POST webhook %s -> %d", bot, w.Code)
		}
	}

	// Unmatched route: label falls back to the raw URL path.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /does-not-exist -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET /readyz -> %d", w.Code)
	}

	// Both bot IDs land on the one route-pattern series.
	gotHook := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook/telegram/:botId", "200"))
	if gotHook != baseHook+2 {
		t.Fatalf("webhook counter = %v; want %v", gotHook, baseHook+2)
	}

	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))
	if got404 != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got404, base404+1)
	}

	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
