package routes

import (
	"github.com/gin-gonic/gin"

	"terraclaim/internal/service/poi"
	"terraclaim/internal/service/territory"
	"terraclaim/internal/session"
)

// Deps carries the collaborators the handlers need.
type Deps struct {
	Sessions    *session.Manager
	Territories *territory.Service
	POIs        *poi.Service
}

// SetupMainHandlers registers the main application endpoints
func SetupMainHandlers(router *gin.RouterGroup, deps *Deps) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"territories": deps.Territories.Count(),
			"pois":        deps.POIs.Count(),
		})
	})
}
