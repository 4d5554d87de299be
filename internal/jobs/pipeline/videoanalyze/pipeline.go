package videoanalyze

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	"github.com/lalocmtz/adbroll-backend/internal/jobs"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type runContext struct {
	jobCtx     *jobs.Context
	ctx        context.Context
	analysisID uuid.UUID
	analysis   *types.Analysis
	brand      *types.Brand
	transcript string
	durationS  float64
	sections   []services.ScriptSection
}

func (p *Pipeline) Type() string { return JobType }

func (p *Pipeline) Run(jobContext *jobs.Context) error {
	if jobContext == nil || jobContext.Job == nil {
		return nil
	}
	rc := &runContext{
		jobCtx: jobContext,
		ctx:    jobContext.Ctx,
	}
	if err := p.loadAndValidate(rc); err != nil {
		p.fail(rc, "validate", err)
		return nil
	}
	if err := p.stageTranscribe(rc); err != nil {
		p.fail(rc, "transcribe", apperr.WithCode(apperr.CodeTranscriptionFailed, err))
		return nil
	}
	if err := p.stageStructure(rc); err != nil {
		p.fail(rc, "structure", err)
		return nil
	}
	if err := p.stagePersist(rc); err != nil {
		p.fail(rc, "persist", err)
		return nil
	}

	jobContext.Succeed("done", map[string]any{
		"analysis_id":   rc.analysisID.String(),
		"section_count": len(rc.sections),
	})
	return nil
}

func (p *Pipeline) loadAndValidate(rc *runContext) error {
	id, ok := rc.jobCtx.PayloadUUID("analysis_id")
	if !ok {
		return fmt.Errorf("payload missing analysis_id")
	}
	rc.analysisID = id

	analysis, err := p.analysisRepo.GetByID(rc.ctx, nil, id)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}
	if analysis.Status.Terminal() {
		return fmt.Errorf("analysis %s already terminal (%s)", id, analysis.Status)
	}
	rc.analysis = analysis

	brand, err := p.brandRepo.GetByID(rc.ctx, nil, analysis.BrandID)
	if err != nil {
		return fmt.Errorf("load brand: %w", err)
	}
	rc.brand = brand

	return p.analysisRepo.UpdateFields(rc.ctx, nil, id, map[string]interface{}{
		"status": types.AnalysisStatusProcessing,
		"error":  "",
	})
}

func (p *Pipeline) stageTranscribe(rc *runContext) error {
	p.progress(rc, "transcribe", 10, "Transcribing source video")

	gcsURI := p.bucket.GSURI(gcp.BucketCategorySource, rc.analysis.StorageKey)
	res, err := p.speech.TranscribeGCS(rc.ctx, gcsURI, gcp.SpeechConfig{
		EnableAutomaticPunctuation: true,
	})
	if err != nil {
		return err
	}
	if res.Transcript == "" {
		return fmt.Errorf("no speech recognized in %s", rc.analysis.StorageKey)
	}
	rc.transcript = res.Transcript
	rc.durationS = res.DurationSeconds

	if err := p.analysisRepo.UpdateFields(rc.ctx, nil, rc.analysisID, map[string]interface{}{
		"status":           types.AnalysisStatusTranscribed,
		"transcript":       rc.transcript,
		"duration_seconds": rc.durationS,
	}); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}

	p.progress(rc, "transcribe", 50, "Transcript ready")
	return nil
}

func (p *Pipeline) stageStructure(rc *runContext) error {
	p.progress(rc, "structure", 60, "Structuring script")

	sections, err := p.scriptGen.StructureTranscript(rc.ctx, rc.transcript, rc.brand)
	if err != nil {
		return err
	}
	rc.sections = sections
	return nil
}

func (p *Pipeline) stagePersist(rc *runContext) error {
	p.progress(rc, "persist", 85, "Saving script sections")

	rows := make([]*types.Section, 0, len(rc.sections))
	for i, s := range rc.sections {
		rows = append(rows, &types.Section{
			AnalysisID:      rc.analysisID,
			Type:            s.Type,
			Text:            s.Text,
			ExpectedSeconds: s.ExpectedSeconds,
			OrderIndex:      i,
		})
	}
	if _, err := p.sectionRepo.CreateBatch(rc.ctx, nil, rows); err != nil {
		return fmt.Errorf("persist sections: %w", err)
	}

	return p.analysisRepo.UpdateFields(rc.ctx, nil, rc.analysisID, map[string]interface{}{
		"status": types.AnalysisStatusCompleted,
	})
}

func (p *Pipeline) progress(rc *runContext, stage string, pct int, msg string) {
	if rc == nil || rc.jobCtx == nil {
		return
	}
	rc.jobCtx.Progress(stage, pct, msg)
}

// fail records the error on both the job run and the analysis row, so the
// HTTP surface reports the failure without having to look at job_run.
func (p *Pipeline) fail(rc *runContext, stage string, err error) {
	if rc == nil || rc.jobCtx == nil {
		return
	}
	rc.jobCtx.Fail(stage, err)

	if rc.analysisID != uuid.Nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if uErr := p.analysisRepo.UpdateFields(rc.ctx, nil, rc.analysisID, map[string]interface{}{
			"status": types.AnalysisStatusFailed,
			"error":  msg,
		}); uErr != nil {
			p.log.Error("Failed to mark analysis failed", "analysis_id", rc.analysisID, "error", uErr)
		}
	}
}
