package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBackend(t *testing.T) {
	before := testutil.ToFloat64(backendRequestsTotal.WithLabelValues("list_reports", "ok"))

	ObserveBackend("list_reports", "ok", 20*time.Millisecond)

	after := testutil.ToFloat64(backendRequestsTotal.WithLabelValues("list_reports", "ok"))
	assert.Equal(t, before+1, after)
}

func TestObserveToolCall(t *testing.T) {
	before := testutil.ToFloat64(toolCallsTotal.WithLabelValues("submit_report", "ok"))
	ObserveToolCall("submit_report", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(toolCallsTotal.WithLabelValues("submit_report", "ok")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/healthz", "200"))

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/healthz", "200")))
}
