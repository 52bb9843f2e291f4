package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is the liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RegisterRoutes wires the relay node endpoints.
func RegisterRoutes(router gin.IRoutes, relay *RelayHandler, metrics gin.HandlerFunc) {
	router.GET("/", relay.Relay)
	router.GET("/health", Health)
	router.GET("/ready", relay.Ready)
	if metrics != nil {
		router.GET("/metrics", metrics)
	}
}
