package api

import (
	"github.com/gin-gonic/gin"

	routes "terraclaim/internal/api/handlers"
	"terraclaim/internal/service/poi"
	"terraclaim/internal/service/territory"
	"terraclaim/internal/session"
)

// SetupRouter initializes all application routes
func SetupRouter(r *gin.Engine, sessions *session.Manager, territories *territory.Service, pois *poi.Service) {
	deps := &routes.Deps{
		Sessions:    sessions,
		Territories: territories,
		POIs:        pois,
	}

	// API group
	api := r.Group("/api")

	// Setup main handlers
	routes.SetupMainHandlers(r.Group(""), deps)

	// Setup claim and exploration handlers
	routes.SetupClaimHandlers(api, deps)
	routes.SetupExploreHandlers(api, deps)
	routes.SetupTerritoryHandlers(api, deps)
}
