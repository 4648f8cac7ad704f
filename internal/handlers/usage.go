package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gramlytics/gramlytics-backend/internal/services"
)

type UsageHandler struct {
	usage services.UsageTracker
}

func NewUsageHandler(usage services.UsageTracker) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GET /api/quota
func (h *UsageHandler) Quota(c *gin.Context) {
	status, err := h.usage.QuotaStatus(c.Request.Context())
	if err != nil {
		code, name := statusForError(err)
		RespondError(c, code, name, err)
		return
	}
	RespondOK(c, gin.H{"quota": status})
}
