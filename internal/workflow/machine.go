package workflow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// Stage is one step of the variant pipeline. Transitions are one-directional
// and gated; failed is reachable from any non-terminal stage and recoverable
// only by Reset. An analysis/project pair is atomic per attempt: there is no
// partial resume across analyses.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageAnalyzing          Stage = "analyzing"
	StageScriptReady        Stage = "script_ready"
	StageClipsAssigned      Stage = "clips_assigned"
	StageVoiceReady         Stage = "voice_ready"
	StageVariantsConfigured Stage = "variants_configured"
	StageRendering          Stage = "rendering"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

var stageOrder = map[Stage]int{
	StageIdle:               0,
	StageAnalyzing:          1,
	StageScriptReady:        2,
	StageClipsAssigned:      3,
	StageVoiceReady:         4,
	StageVariantsConfigured: 5,
	StageRendering:          6,
	StageDone:               7,
}

// Machine holds the single authoritative workflow state for one session.
type Machine struct {
	mu         sync.Mutex
	stage      Stage
	failReason string
}

func NewMachine() *Machine {
	return &Machine{stage: StageIdle}
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

func (m *Machine) FailReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failReason
}

// CanEnter reports whether the given stage is unlocked: any stage already
// passed, the current stage, or the immediate next one. Pure query, no side
// effects.
func (m *Machine) CanEnter(s Stage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage == StageFailed {
		return s == StageIdle
	}
	target, ok := stageOrder[s]
	if !ok {
		return false
	}
	return target <= stageOrder[m.stage]+1
}

func (m *Machine) advance(from, to Stage) error {
	if m.stage != from {
		return fmt.Errorf("%w: cannot enter %s from %s", apperr.ErrStageLocked, to, m.stage)
	}
	m.stage = to
	return nil
}

// BeginAnalysis unlocks the analyzing stage for a fresh session.
func (m *Machine) BeginAnalysis() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advance(StageIdle, StageAnalyzing)
}

// MarkScriptReady requires a completed analysis.
func (m *Machine) MarkScriptReady(analysis *types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if analysis == nil || analysis.Status != types.AnalysisStatusCompleted {
		status := types.AnalysisStatus("")
		if analysis != nil {
			status = analysis.Status
		}
		return fmt.Errorf("%w: script requires a completed analysis, status is %q", apperr.ErrStageLocked, status)
	}
	return m.advance(StageAnalyzing, StageScriptReady)
}

// MarkClipsAssigned requires every section to carry a non-nil asset binding.
// Rejection leaves the machine untouched, so a repeated attempt with the same
// incomplete set fails identically.
func (m *Machine) MarkClipsAssigned(assignments types.AssignmentSet, sections []*types.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if unbound := assignments.Unbound(sections); len(unbound) > 0 {
		return fmt.Errorf("%w: %d of %d sections have no clip bound", apperr.ErrStageLocked, len(unbound), len(sections))
	}
	return m.advance(StageScriptReady, StageClipsAssigned)
}

// MarkVoiceReady requires a selected voice.
func (m *Machine) MarkVoiceReady(voiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if voiceID == "" {
		return fmt.Errorf("%w: no voice selected", apperr.ErrStageLocked)
	}
	return m.advance(StageClipsAssigned, StageVoiceReady)
}

// MarkVariantsConfigured requires a positive variant count.
func (m *Machine) MarkVariantsConfigured(count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count < 1 {
		return fmt.Errorf("%w: variant count must be at least 1, got %d", apperr.ErrStageLocked, count)
	}
	return m.advance(StageVoiceReady, StageVariantsConfigured)
}

// BeginRendering requires the project record to exist.
func (m *Machine) BeginRendering(projectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if projectID == uuid.Nil {
		return fmt.Errorf("%w: rendering requires a created project", apperr.ErrStageLocked)
	}
	return m.advance(StageVariantsConfigured, StageRendering)
}

// Complete moves rendering to done once the whole batch is terminal.
func (m *Machine) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advance(StageRendering, StageDone)
}

// Fail moves any non-terminal stage to failed with a reason.
func (m *Machine) Fail(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage == StageDone || m.stage == StageFailed {
		return fmt.Errorf("%w: cannot fail from terminal stage %s", apperr.ErrStageLocked, m.stage)
	}
	m.stage = StageFailed
	m.failReason = reason
	return nil
}

// Reset returns the machine to idle. The only way out of failed.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = StageIdle
	m.failReason = ""
}
