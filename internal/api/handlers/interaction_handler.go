package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/services"
)

type InteractionHandler struct {
	service *services.InteractionService
}

func NewInteractionHandler(service *services.InteractionService) *InteractionHandler {
	return &InteractionHandler{service: service}
}

type interactionRequest struct {
	Category *string `json:"category"`
	Action   *string `json:"action"`
	Details  any     `json:"details"`
}

// Log records a client-side event reported by a decoy page.
func (h *InteractionHandler) Log(c *gin.Context) {
	var body interactionRequest
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Expected JSON data"})
		return
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Expected JSON data"})
		return
	}

	in := services.InteractionInput{Category: "unknown_page", Action: "client_event"}
	if body.Category != nil {
		in.Category = *body.Category
	}
	if body.Action != nil {
		in.Action = *body.Action
	}
	switch d := body.Details.(type) {
	case nil:
	case map[string]any:
		in.Details = d
	default:
		in.Details = map[string]any{"raw_details": fmt.Sprint(d)}
	}

	req := fingerprint.FromHTTPRequest(c.Request, middleware.SessionValues(c))
	rec, err := h.service.Log(c.Request.Context(), req, in)
	if err != nil {
		if errors.Is(err, services.ErrInteractionCategory) || errors.Is(err, services.ErrInteractionAction) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid category or action length"})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("failed to log interaction")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "interaction_id": rec.UUID})
}
