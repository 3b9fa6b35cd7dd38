package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type originMatcher struct {
	any     bool
	origins map[string]struct{}
}

func newOriginMatcher(allowed []string) originMatcher {
	m := originMatcher{origins: make(map[string]struct{})}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			m.any = true
		default:
			m.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		m.any = true
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}
	_, ok := m.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// CORS answers preflights and tags responses for the browser clients. Origins outside the
// allow list are refused.
func CORS(allowed []string) gin.HandlerFunc {
	m := newOriginMatcher(allowed)
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if m.any {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOriginFunc = m.allows
	}
	return cors.New(cfg)
}

// AccessLog writes one structured line per request.
func AccessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
