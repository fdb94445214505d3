package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"terraclaim/internal/model"
)

// SetupTerritoryHandlers registers the territory and POI query endpoints
func SetupTerritoryHandlers(router *gin.RouterGroup, deps *Deps) {
	router.GET("/territories", func(c *gin.Context) {
		c.JSON(200, gin.H{"territories": deps.Territories.Snapshot()})
	})

	router.GET("/pois/nearby", func(c *gin.Context) {
		lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
		lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
		if err1 != nil || err2 != nil {
			c.JSON(400, gin.H{"error": "lat and lng are required"})
			return
		}

		radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "500"), 64)
		if err != nil || radius <= 0 {
			c.JSON(400, gin.H{"error": "invalid radius"})
			return
		}
		maxResults, err := strconv.Atoi(c.DefaultQuery("max", "20"))
		if err != nil || maxResults < 0 {
			c.JSON(400, gin.H{"error": "invalid max"})
			return
		}

		center := model.GeoPoint{Latitude: lat, Longitude: lng}
		if !center.Valid() {
			c.JSON(400, gin.H{"error": "coordinate out of range"})
			return
		}

		c.JSON(200, gin.H{"pois": deps.POIs.SearchNearby(center, radius, maxResults)})
	})
}
