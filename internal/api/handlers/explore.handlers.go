package routes

import (
	"errors"

	"github.com/gin-gonic/gin"

	"terraclaim/internal/session"
)

type deviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// SetupExploreHandlers registers the exploration-session endpoints
func SetupExploreHandlers(router *gin.RouterGroup, deps *Deps) {
	exploreGroup := router.Group("/explore")

	exploreGroup.POST("/start", func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		s := deps.Sessions.Exploration(req.DeviceID)
		if err := s.Start(c.Request.Context()); err != nil {
			status := 400
			if errors.Is(err, session.ErrStartDebounced) {
				status = 429
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"state": s.State().String()})
	})

	exploreGroup.POST("/sample", func(c *gin.Context) {
		var req samplePayload
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Non-blocking: the session's consumer drains the bounded channel.
		deps.Sessions.PushSample(req.DeviceID, req.toSample())
		c.JSON(202, gin.H{"status": "queued"})
	})

	exploreGroup.POST("/stop", func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		s := deps.Sessions.Exploration(req.DeviceID)
		if err := s.Stop(c.Request.Context()); err != nil {
			status := 400
			if errors.Is(err, session.ErrSessionTooShort) {
				status = 409
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"state": s.State().String()})
	})

	exploreGroup.POST("/reset", func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		s := deps.Sessions.Exploration(req.DeviceID)
		if err := s.ResetState(); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"state": s.State().String()})
	})

	exploreGroup.POST("/scavenge", func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		s := deps.Sessions.Exploration(req.DeviceID)
		items, err := s.ScavengeActivePOI(c.Request.Context())
		if err != nil {
			c.JSON(409, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"items": items})
	})

	exploreGroup.POST("/dismiss", func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		s := deps.Sessions.Exploration(req.DeviceID)
		if err := s.DismissActivePOI(); err != nil {
			c.JSON(409, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "dismissed"})
	})

	exploreGroup.GET("/status", func(c *gin.Context) {
		deviceID := c.Query("device_id")
		if deviceID == "" {
			c.JSON(400, gin.H{"error": "device_id is required"})
			return
		}

		s := deps.Sessions.Exploration(deviceID)
		resp := gin.H{
			"state":      s.State().String(),
			"distance_m": s.Distance(),
			"tier":       s.Tier().String(),
		}
		if reason := s.FailReason(); reason != "" {
			resp["fail_reason"] = reason
		}
		if result := s.Result(); result != nil {
			resp["result"] = result
		}
		c.JSON(200, resp)
	})
}
