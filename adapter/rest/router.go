package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the gin router.
func SetupRouter(api *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/state", api.State)
	r.GET("/events", api.Events)
	r.GET("/stats", api.Stats)

	stations := r.Group("/stations")
	{
		stations.GET("", api.Stations)
		stations.POST("/:id/select", api.Select)
		stations.GET("/:id/probe", api.ProbeStation)
	}

	r.POST("/toggle", api.Toggle)
	r.POST("/next", api.Next)
	r.POST("/prev", api.Prev)
	r.PUT("/volume", api.Volume)
	r.POST("/probe", api.Probe)

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
