package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobmatch/jobmatch-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "jobmatch-api-service",
		})
	})

	sessionHandler := handler.NewSessionHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/upload - Parse a resume and open a session
		v1.POST("/upload", sessionHandler.Upload)

		// POST /api/v1/checkout - Start payment for a session
		v1.POST("/checkout", sessionHandler.Checkout)

		// POST /api/v1/webhook - Payment provider event delivery
		v1.POST("/webhook", sessionHandler.Webhook)

		// GET /api/v1/results/:session_id - Results page payload
		v1.GET("/results/:session_id", sessionHandler.Results)

		// GET /api/v1/session - Resolve a checkout redirect to a session
		v1.GET("/session", sessionHandler.ResolveSession)
	}

	return r
}
