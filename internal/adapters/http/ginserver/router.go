package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, _ *zap.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true
	// device IDs contain slashes and travel path-escaped
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/", h.Index)

	api := r.Group("/api/v1")
	api.POST("/check", h.Check)
	api.GET("/devices", h.ListDevices)
	api.GET("/devices/:id", h.GetDevice)

	return r
}
