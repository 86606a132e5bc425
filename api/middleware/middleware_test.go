package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/actorkit/config"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(KeyAPIKeyID))
	})
	return r
}

func get(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"secret"}))

	assert.Equal(t, http.StatusUnauthorized, get(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "X-API-Key", "wrong").Code)

	w := get(r, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, KeyID("secret"), w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "Authorization", "Bearer secret").Code)
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth(nil))
	assert.Equal(t, http.StatusOK, get(r, "", "").Code)
}

func TestKeyID_StableAndOpaque(t *testing.T) {
	id := KeyID("secret")
	assert.Equal(t, id, KeyID("secret"))
	assert.NotContains(t, id, "secret")
	assert.Len(t, id, len("key_")+16)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "a").Code)
	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "X-API-Key", "a").Code)

	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "b").Code, "buckets are per key")
}
