package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adilet/payment-risk-engine/internal/catalogue"
	"github.com/adilet/payment-risk-engine/internal/handlers"
	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/metrics"
	"github.com/adilet/payment-risk-engine/internal/service"
	"github.com/adilet/payment-risk-engine/internal/telemetry"
)

func NewRouter(
	pipeline *service.Pipeline,
	cat *catalogue.Catalogue,
	verdicts interfaces.VerdictRepository,
	alerts interfaces.AlertRepository,
	audits interfaces.AuditRepository,
	collector *metrics.Collector,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	r.GET("/metrics", gin.WrapH(collector.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "risk-decision-engine"})
	})

	decisionHandler := handlers.NewDecisionHandler(pipeline, verdicts, audits)
	r.POST("/decisions", decisionHandler.Decide)
	r.GET("/verdicts/:id", decisionHandler.GetVerdict)
	r.GET("/audit/:trace_id", decisionHandler.GetAuditTrail)

	alertHandler := handlers.NewAlertHandler(alerts)
	r.GET("/alerts/:id", alertHandler.GetAlert)
	r.POST("/alerts/:id/status", alertHandler.ChangeStatus)

	// Operational escape hatch: force a catalogue reload without waiting
	// for the refresh interval.
	r.POST("/catalogue/refresh", func(c *gin.Context) {
		if err := cat.Refresh(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{"code": "catalogue_unavailable", "message": "rule catalogue refresh failed"},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	})

	return r
}
