package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gramlytics/gramlytics-backend/internal/services"
)

type CollectionHandler struct {
	collector services.CollectorService
	pool      services.CollectorPool
}

func NewCollectionHandler(collector services.CollectorService, pool services.CollectorPool) *CollectionHandler {
	return &CollectionHandler{collector: collector, pool: pool}
}

type collectRequest struct {
	Username string `json:"username" binding:"required"`
	Async    bool   `json:"async"`
}

// POST /api/collect
func (h *CollectionHandler) Collect(c *gin.Context) {
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("username required"))
		return
	}

	if req.Async {
		if !h.pool.Enqueue(username) {
			RespondError(c, http.StatusConflict, "already_queued", fmt.Errorf("collection for %q already queued or running", username))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "target": username})
		return
	}

	summary, err := h.collector.Collect(c.Request.Context(), username)
	if err != nil {
		status, code := statusForError(err)
		// A partial or failed run still produced an audit trail worth
		// returning alongside the error.
		if summary != nil {
			c.JSON(status, gin.H{"run": summary, "error": err.Error(), "code": code})
			return
		}
		RespondError(c, status, code, err)
		return
	}
	RespondOK(c, gin.H{"run": summary})
}

// GET /api/collect/:username
func (h *CollectionHandler) Status(c *gin.Context) {
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))
	if username == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("username required"))
		return
	}

	summary, err := h.collector.CollectionStatus(c.Request.Context(), username)
	if err != nil {
		status, code := statusForError(err)
		RespondError(c, status, code, err)
		return
	}
	RespondOK(c, gin.H{"run": summary, "in_flight": h.pool.InFlight(username)})
}
