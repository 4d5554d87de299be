package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lalocmtz/adbroll-backend/internal/services"
)

type VoiceHandler struct {
	voiceover services.VoiceoverService
}

func NewVoiceHandler(voiceover services.VoiceoverService) *VoiceHandler {
	return &VoiceHandler{voiceover: voiceover}
}

// GET /api/voices
func (h *VoiceHandler) ListVoices(c *gin.Context) {
	voices, err := h.voiceover.ListVoices(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"voices": voices})
}
