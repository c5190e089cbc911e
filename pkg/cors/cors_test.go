package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestAllowedOrigin(t *testing.T) {
	allowed := []string{
		"https://yayproject.com",
		"https://a.b.yayproject.com",
		"https://www.YayProject.com",
	}
	for _, origin := range allowed {
		assert.True(t, AllowedOrigin(origin, "yayproject.com"), origin)
	}

	rejected := []string{
		"",
		"https://evil.com",
		"http://yayproject.com",
		"https://evilyayproject.com",
		"https://yayproject.com.evil.com",
		"https://yayproject.com:8443",
		"https://yayproject.com/path",
		"https://user@yayproject.com",
		"null",
	}
	for _, origin := range rejected {
		assert.False(t, AllowedOrigin(origin, "yayproject.com"), origin)
	}
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(Middleware("yayproject.com"))
	r.GET("/snapshot", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestPreflight(t *testing.T) {
	r := newRouter()

	for _, origin := range []string{"https://yayproject.com", "https://a.b.yayproject.com"} {
		req, _ := http.NewRequest(http.MethodOptions, "/anything/at/all", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	}

	for _, origin := range []string{"https://evil.com", ""} {
		req, _ := http.NewRequest(http.MethodOptions, "/snapshot", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
		assert.Empty(t, w.Header().Get("Vary"))
	}
}

func TestSimpleRequestHeaders(t *testing.T) {
	r := newRouter()

	req, _ := http.NewRequest(http.MethodGet, "/snapshot", nil)
	req.Header.Set("Origin", "https://yayproject.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://yayproject.com", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/snapshot", nil)
	req.Header.Set("Origin", "https://evil.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
