// Package api is the HTTP surface of the contingent example.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter creates and configures the Gin router.
func NewRouter(h *ContingentHandler, gatherer prometheus.Gatherer, log *logrus.Entry) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery(), CorrelationID(), RequestLogging(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	g := r.Group("/event-organizing")
	g.POST("/init-random-contingent", h.InitializeRandomContingent)
	g.GET("/read-contingent-events", h.ReadContingentEvents)
	g.POST("/increase-contingent", h.IncreaseContingent)
	g.POST("/reduce-contingent", h.ReduceContingent)
	g.POST("/limit-contingent", h.LimitContingent)
	g.POST("/set-contingent-to-unlimited", h.SetContingentToUnlimited)
	g.POST("/sell-contingent", h.SellContingent)

	return r
}
