package cors

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// AllowedOrigin reports whether origin is https:// plus rootDomain or one of
// its subdomains, with nothing else (no port, path, or credentials).
func AllowedOrigin(origin, rootDomain string) bool {
	if origin == "" || rootDomain == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.User != nil || u.Port() != "" {
		return false
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.Opaque != "" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	root := strings.ToLower(rootDomain)
	return host == root || strings.HasSuffix(host, "."+root)
}

// Middleware adds CORS headers for allowed origins and answers every OPTIONS
// request with 204, whether or not the origin is allowed.
func Middleware(rootDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if AllowedOrigin(origin, rootDomain) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
