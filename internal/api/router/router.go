package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/file-processor/internal/api/handler"
)

const serviceName = "file-processor"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.Database != nil {
			if err := deps.Database.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Warn("Health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":   "unhealthy",
					"service":  serviceName,
					"database": "unreachable",
				})
				return
			}
		}
		if deps.Broker != nil && !deps.Broker.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": serviceName,
				"broker":  "disconnected",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	outcomeHandler := handler.NewOutcomeHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/stats - Pool state and outcome counters
		v1.GET("/stats", outcomeHandler.GetStats)

		outcomes := v1.Group("/outcomes")
		{
			// GET /api/v1/outcomes - Recent outcomes from memory
			outcomes.GET("", outcomeHandler.ListRecent)

			// GET /api/v1/outcomes/history - Persisted outcomes, keyset paginated
			outcomes.GET("/history", outcomeHandler.ListHistory)

			// GET /api/v1/outcomes/:job_id - One outcome
			outcomes.GET("/:job_id", outcomeHandler.GetOutcome)
		}
	}

	return r
}
