package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/util"
)

// AnalyticsHandler serves the operator views over stored activity.
type AnalyticsHandler struct {
	analytics    *services.AnalyticsService
	scorer       *services.ThreatScorer
	escalation   *services.EscalationService
	interactions *services.InteractionService
}

func NewAnalyticsHandler(
	analytics *services.AnalyticsService,
	scorer *services.ThreatScorer,
	escalation *services.EscalationService,
	interactions *services.InteractionService,
) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, scorer: scorer, escalation: escalation, interactions: interactions}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	top, _ := strconv.Atoi(c.DefaultQuery("top", "10"))
	recent, _ := strconv.Atoi(c.DefaultQuery("recent", "20"))

	out, err := h.analytics.Summary(c.Request.Context(), top, recent)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("analytics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve analytics data"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Client returns the watch entry and score breakdown of one fingerprint.
func (h *AnalyticsHandler) Client(c *gin.Context) {
	profile, err := h.analytics.Profile(c.Request.Context(), h.scorer, c.Param("fingerprint"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve client"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AnalyticsHandler) Interactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	out, err := h.interactions.List(c.Request.Context(), services.InteractionFilter{
		Category: c.Query("category"),
		Action:   c.Query("action"),
		IP:       c.Query("ip"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve interactions"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) Blocklist(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	blocks, err := h.escalation.ListActive(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blocks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks, "count": len(blocks)})
}

// Unblock deletes the block keyed by a fingerprint or an IP.
func (h *AnalyticsHandler) Unblock(c *gin.Context) {
	key := c.Param("key")
	removed, err := h.escalation.Unblock(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove block"})
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
		return
	}
	middleware.GetRequestLogger(c).WithField("key", util.SanitizeForLog(key)).Info("block removed by operator")
	c.JSON(http.StatusOK, gin.H{"message": "Block removed"})
}
