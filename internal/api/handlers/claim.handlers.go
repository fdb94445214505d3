package routes

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"terraclaim/internal/model"
	"terraclaim/internal/session"
)

type claimStartRequest struct {
	DeviceID  string  `json:"device_id" binding:"required"`
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

type samplePayload struct {
	DeviceID  string    `json:"device_id" binding:"required"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
}

func (p samplePayload) toSample() model.TimedPoint {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.TimedPoint{
		GeoPoint:  model.GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude},
		Timestamp: ts,
		Speed:     p.Speed,
		Accuracy:  p.Accuracy,
	}
}

// SetupClaimHandlers registers the territory-claim endpoints
func SetupClaimHandlers(router *gin.RouterGroup, deps *Deps) {
	claimGroup := router.Group("/claim")

	claimGroup.POST("/start", func(c *gin.Context) {
		var req claimStartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		start := model.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude}
		if !start.Valid() {
			c.JSON(400, gin.H{"error": "coordinate out of range"})
			return
		}

		claim := deps.Sessions.Claim(req.DeviceID)
		if err := claim.Start(start); err != nil {
			if errors.Is(err, session.ErrClaimBlocked) {
				c.JSON(409, gin.H{"error": err.Error()})
				return
			}
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "tracking"})
	})

	claimGroup.POST("/point", func(c *gin.Context) {
		var req samplePayload
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		claim := deps.Sessions.Claim(req.DeviceID)
		res := claim.HandleSample(req.toSample())

		c.JSON(200, gin.H{
			"outcome":        res.Outcome.String(),
			"distance_added": res.DistanceAdded,
			"closed":         claim.IsClosed(),
			"warning_level":  claim.WarningLevel().String(),
			"state":          claim.State().String(),
		})
	})

	claimGroup.POST("/finish", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		claim := deps.Sessions.Claim(req.DeviceID)
		territory, err := claim.Finish(c.Request.Context())
		if err != nil {
			if errors.Is(err, session.ErrPathNotClosed) || errors.Is(err, session.ErrClaimAborted) {
				c.JSON(409, gin.H{"error": err.Error()})
				return
			}
			log.Printf("Claim finish failed for %s: %v", req.DeviceID, err)
			c.JSON(502, gin.H{"error": err.Error(), "retryable": true})
			return
		}

		c.JSON(200, gin.H{"territory": territory})
	})

	claimGroup.POST("/cancel", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		deps.Sessions.Claim(req.DeviceID).Cancel()
		c.JSON(200, gin.H{"status": "cancelled"})
	})
}
