package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type VariantHandler struct {
	log      *logger.Logger
	progress services.ProgressService
}

func NewVariantHandler(log *logger.Logger, progress services.ProgressService) *VariantHandler {
	return &VariantHandler{
		log:      log.With("handler", "VariantHandler"),
		progress: progress,
	}
}

// GET /api/variants/progress?ids=a,b,c
// Poll fallback for clients without an SSE connection. Scope is exactly the
// requested id set.
func (h *VariantHandler) GetProgress(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		RespondError(c, http.StatusBadRequest, "missing_ids", fmt.Errorf("ids query parameter required"))
		return
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_variant_id", err)
			return
		}
		ids = append(ids, id)
	}
	summary, err := h.progress.Fetch(c.Request.Context(), ids)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, summary)
}

// POST /api/render/callback
// Webhook from the render collaborator. Delivery is at least once and may be
// out of order; the progress service drops whatever the row guard rejects, so
// this always acknowledges with 200 unless the payload is unreadable.
func (h *VariantHandler) RenderCallback(c *gin.Context) {
	var ev types.ProgressEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if ev.VariantID == uuid.Nil {
		RespondError(c, http.StatusBadRequest, "missing_variant_id", fmt.Errorf("variant_id required"))
		return
	}
	applied, err := h.progress.ApplyEvent(c.Request.Context(), ev)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"applied": applied})
}
