package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type routeRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func newTestEngine(h routeRegistrar) *gin.Engine {
	r := gin.New()
	r.Use(Principal())
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doRequestWithHeaders(t, r, method, path, principal, nil, body)
}

func doRequestWithHeaders(t *testing.T, r http.Handler, method, path, principal string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(PrincipalHeader, principal)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
