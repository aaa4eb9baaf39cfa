package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter mounts the API. metrics, when non-nil, is served at /metrics.
func NewRouter(h *Handler, metrics http.Handler, _ *zap.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	r.GET("/subscriptions", h.ListSubscriptions)
	r.DELETE("/subscriptions", h.UnsubscribeAll)
	r.PUT("/subscriptions/:topic", h.Subscribe)
	r.DELETE("/subscriptions/:topic", h.Unsubscribe)

	r.GET("/rates", h.ListRates)
	r.GET("/rates/:topic", h.GetRates)

	r.GET("/connections", h.ListConnections)
	r.DELETE("/connections", h.CloseAllConnections)
	r.DELETE("/connections/:id", h.CloseConnection)

	r.GET("/logs", h.ListLogs)
	r.DELETE("/logs", h.ControlLogs("clear"))
	r.POST("/logs/pause", h.ControlLogs("pause"))
	r.POST("/logs/resume", h.ControlLogs("resume"))

	r.GET("/backends", h.ListBackends)
	r.POST("/backends", h.AddBackend)
	r.POST("/backends/test", h.TestBackend)
	r.DELETE("/backends/:id", h.RemoveBackend)
	r.POST("/backends/:id/activate", h.ActivateBackend)

	return r
}
