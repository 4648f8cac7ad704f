package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gramlytics/gramlytics-backend/internal/services"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

type SearchHandler struct {
	search services.SearchService
}

func NewSearchHandler(search services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// GET /api/search?q=<query>&kind=<user|location|audio>
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	kind := strings.TrimSpace(c.DefaultQuery("kind", types.SearchKindUser))

	if query == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("query parameter q required"))
		return
	}
	if !types.ValidSearchKind(strings.ToLower(kind)) {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("unknown search kind %q", kind))
		return
	}

	results, cacheHit, err := h.search.GetOrFetch(c.Request.Context(), kind, query)
	if err != nil {
		status, code := statusForError(err)
		RespondError(c, status, code, err)
		return
	}
	RespondOK(c, gin.H{
		"results":   results,
		"count":     len(results),
		"cache_hit": cacheHit,
	})
}
