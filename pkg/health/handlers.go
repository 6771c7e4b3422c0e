package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler returns a gin handler that runs a check cycle and reports
// the aggregate. A critical aggregate answers 503.
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		report := r.RunChecks(ctx)

		statusCode := http.StatusOK
		if report.Overall == StatusCritical {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, report)
	}
}

// LivenessHandler returns a simple liveness check handler
func (r *Registry) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler answers from the last completed cycle without
// running probes, so it stays cheap under load-balancer polling.
func (r *Registry) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := r.LastReport()
		if report == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unknown",
				"ready":  false,
			})
			return
		}

		statusCode := http.StatusOK
		if report.Overall == StatusCritical {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":    report.Overall,
			"timestamp": report.Timestamp,
			"ready":     report.Overall != StatusCritical,
		})
	}
}
