package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/marketconnect/llm-council/app/internal/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type whoami struct{}

func (whoami) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, handlers.PrincipalOf(c)) })
}

func testConfig() *config.Config {
	cfg := &config.Config{IsDev: true}
	cfg.HTTP.CORSOrigins = []string{"https://council.example"}
	return cfg
}

func TestSetup_MountsRoutesUnderAPI(t *testing.T) {
	r := Setup(testConfig(), nil, whoami{})

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(handlers.PrincipalHeader, "carol")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "carol", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetup_CORS(t *testing.T) {
	r := Setup(testConfig(), nil, whoami{})

	req := httptest.NewRequest(http.MethodOptions, "/api/whoami", nil)
	req.Header.Set("Origin", "https://council.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", handlers.PrincipalHeader)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "https://council.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(handlers.PrincipalHeader))
}

func TestSetup_PrometheusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	r := Setup(testConfig(), reg)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "router_test_total 1")
}
