package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type AnalysisHandler struct {
	log          *logger.Logger
	coordinator  services.Coordinator
	catalog      services.CatalogService
	scriptGen    services.ScriptGenService
	analysisRepo repos.AnalysisRepo
	sectionRepo  repos.SectionRepo
	projectRepo  repos.ProjectRepo
}

func NewAnalysisHandler(
	log *logger.Logger,
	coordinator services.Coordinator,
	catalog services.CatalogService,
	scriptGen services.ScriptGenService,
	analysisRepo repos.AnalysisRepo,
	sectionRepo repos.SectionRepo,
	projectRepo repos.ProjectRepo,
) *AnalysisHandler {
	return &AnalysisHandler{
		log:          log.With("handler", "AnalysisHandler"),
		coordinator:  coordinator,
		catalog:      catalog,
		scriptGen:    scriptGen,
		analysisRepo: analysisRepo,
		sectionRepo:  sectionRepo,
		projectRepo:  projectRepo,
	}
}

// POST /api/analyses
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	var req struct {
		BrandID    uuid.UUID `json:"brand_id"`
		SourceURL  string    `json:"source_url"`
		StorageKey string    `json:"storage_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	analysis, err := h.coordinator.StartAnalysis(c.Request.Context(), req.BrandID, req.SourceURL, req.StorageKey)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"analysis": analysis})
}

// GET /api/analyses/:id
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	analysis, err := h.analysisRepo.GetByID(c.Request.Context(), nil, analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	sections, err := h.sectionRepo.ListByAnalysis(c.Request.Context(), nil, analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"analysis": analysis,
		"sections": sections,
		"stage":    h.coordinator.Stage(analysisID),
	})
}

// GET /api/analyses/:id/wait
// Blocks with bounded fixed-interval polling until the analysis is terminal.
func (h *AnalysisHandler) WaitAnalysis(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	analysis, err := h.coordinator.WaitForAnalysis(c.Request.Context(), analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	sections, err := h.sectionRepo.ListByAnalysis(c.Request.Context(), nil, analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"analysis": analysis, "sections": sections})
}

// sectionEditable rejects edits once the analysis has been approved into a
// project; the script is frozen from that point on.
func (h *AnalysisHandler) sectionEditable(c *gin.Context, analysisID uuid.UUID) bool {
	_, err := h.projectRepo.GetByAnalysis(c.Request.Context(), nil, analysisID)
	if err == nil {
		RespondError(c, http.StatusConflict, "script_frozen",
			fmt.Errorf("%w: analysis %s already approved into a project", apperr.ErrStageLocked, analysisID))
		return false
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		RespondAppError(c, err)
		return false
	}
	return true
}

// PUT /api/analyses/:id/sections/:sectionID
func (h *AnalysisHandler) UpdateSectionText(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	sectionID, err := uuid.Parse(c.Param("sectionID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_section_id", err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("text required"))
		return
	}
	if !h.sectionEditable(c, analysisID) {
		return
	}
	section, err := h.sectionRepo.GetByID(c.Request.Context(), nil, sectionID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if section.AnalysisID != analysisID {
		RespondError(c, http.StatusNotFound, "section_not_found",
			fmt.Errorf("%w: section %s does not belong to analysis %s", apperr.ErrNotFound, sectionID, analysisID))
		return
	}
	if err := h.sectionRepo.UpdateText(c.Request.Context(), nil, sectionID, req.Text); err != nil {
		RespondAppError(c, err)
		return
	}
	section.Text = req.Text
	RespondOK(c, gin.H{"section": section})
}

// POST /api/analyses/:id/sections/:sectionID/rewrite
func (h *AnalysisHandler) RewriteSection(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	sectionID, err := uuid.Parse(c.Param("sectionID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_section_id", err)
		return
	}
	var req struct {
		Instruction string `json:"instruction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !h.sectionEditable(c, analysisID) {
		return
	}
	section, err := h.sectionRepo.GetByID(c.Request.Context(), nil, sectionID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if section.AnalysisID != analysisID {
		RespondError(c, http.StatusNotFound, "section_not_found",
			fmt.Errorf("%w: section %s does not belong to analysis %s", apperr.ErrNotFound, sectionID, analysisID))
		return
	}
	rewritten, err := h.scriptGen.RewriteSection(c.Request.Context(), section, req.Instruction)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := h.sectionRepo.UpdateText(c.Request.Context(), nil, sectionID, rewritten); err != nil {
		RespondAppError(c, err)
		return
	}
	section.Text = rewritten
	RespondOK(c, gin.H{"section": section})
}

// POST /api/analyses/:id/validate
func (h *AnalysisHandler) Validate(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	analysis, err := h.analysisRepo.GetByID(c.Request.Context(), nil, analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	feasibility, err := h.catalog.Validate(c.Request.Context(), analysis.BrandID, analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"feasibility": feasibility})
}

// POST /api/analyses/:id/approve-script
func (h *AnalysisHandler) ApproveScript(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	if err := h.coordinator.ApproveScript(c.Request.Context(), analysisID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stage": h.coordinator.Stage(analysisID)})
}

// PUT /api/analyses/:id/assignments
func (h *AnalysisHandler) SetAssignments(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	var req struct {
		Assignments types.AssignmentSet `json:"assignments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.coordinator.AssignClips(c.Request.Context(), analysisID, req.Assignments); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stage": h.coordinator.Stage(analysisID)})
}

// PUT /api/analyses/:id/voice
func (h *AnalysisHandler) SetVoice(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	var req struct {
		VoiceID    string  `json:"voice_id"`
		Stability  float64 `json:"stability"`
		Similarity float64 `json:"similarity"`
		Style      float64 `json:"style"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.coordinator.SelectVoice(c.Request.Context(), analysisID, req.VoiceID, req.Stability, req.Similarity, req.Style); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stage": h.coordinator.Stage(analysisID)})
}

// PUT /api/analyses/:id/variants
func (h *AnalysisHandler) SetVariantCount(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.coordinator.ConfigureVariants(c.Request.Context(), analysisID, req.Count); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stage": h.coordinator.Stage(analysisID)})
}

// POST /api/analyses/:id/approve
func (h *AnalysisHandler) Approve(c *gin.Context) {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_analysis_id", err)
		return
	}
	project, variants, err := h.coordinator.Approve(c.Request.Context(), analysisID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project, "variants": variants})
}
