package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/lalocmtz/adbroll-backend/internal/clients/openai"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// ScriptSection is one structured line of the generated ad script, before it
// is persisted as a Section row.
type ScriptSection struct {
	Type            types.SectionType
	Text            string
	ExpectedSeconds float64
}

// ScriptGenService turns a raw transcript into an ordered, typed ad script.
// Unusable model output comes back coded UNSTRUCTURED_CONTENT so callers can
// surface it distinctly from transport failures.
type ScriptGenService interface {
	StructureTranscript(ctx context.Context, transcript string, brand *types.Brand) ([]ScriptSection, error)
	RewriteSection(ctx context.Context, section *types.Section, instruction string) (string, error)
}

type scriptGenService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewScriptGenService(baseLog *logger.Logger, ai openai.Client) ScriptGenService {
	return &scriptGenService{
		log: baseLog.With("service", "ScriptGenService"),
		ai:  ai,
	}
}

var scriptSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":             map[string]any{"type": "string"},
					"text":             map[string]any{"type": "string"},
					"expected_seconds": map[string]any{"type": "number"},
				},
				"required":             []string{"type", "text", "expected_seconds"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"sections"},
	"additionalProperties": false,
}

const structureSystemPrompt = `You split video ad transcripts into an ordered script of typed sections.
Allowed section types: hook, problem, agitation, solution, product, demo, benefit, objection, cta, custom.
Each section is one spoken line. Estimate expected_seconds from the text length at a natural speaking pace.
Return every meaningful beat of the transcript; do not invent content that is not there.`

func (s *scriptGenService) StructureTranscript(ctx context.Context, transcript string, brand *types.Brand) ([]ScriptSection, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, apperr.WithCode(apperr.CodeUnstructuredContent, fmt.Errorf("transcript is empty"))
	}

	var user strings.Builder
	if brand != nil {
		fmt.Fprintf(&user, "Brand: %s\n", brand.Name)
		if brand.Tone != "" {
			fmt.Fprintf(&user, "Tone: %s\n", brand.Tone)
		}
		if brand.Description != "" {
			fmt.Fprintf(&user, "About: %s\n", brand.Description)
		}
		user.WriteString("\n")
	}
	user.WriteString("Transcript:\n")
	user.WriteString(transcript)

	obj, err := s.ai.GenerateJSON(ctx, structureSystemPrompt, user.String(), "ad_script", scriptSchema)
	if err != nil {
		return nil, fmt.Errorf("structure transcript: %w", err)
	}

	sections, err := parseScriptSections(obj)
	if err != nil {
		return nil, apperr.WithCode(apperr.CodeUnstructuredContent, err)
	}
	return sections, nil
}

func parseScriptSections(obj map[string]any) ([]ScriptSection, error) {
	rawList, ok := obj["sections"].([]any)
	if !ok {
		return nil, fmt.Errorf("model output has no sections array")
	}

	out := make([]ScriptSection, 0, len(rawList))
	for i, raw := range rawList {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("section %d is not an object", i)
		}
		text := strings.TrimSpace(fmt.Sprint(m["text"]))
		if text == "" || text == "<nil>" {
			continue
		}
		secType := types.NormalizeSectionType(fmt.Sprint(m["type"]))

		var seconds float64
		if v, ok := m["expected_seconds"].(float64); ok && v > 0 {
			seconds = v
		}
		out = append(out, ScriptSection{
			Type:            secType,
			Text:            text,
			ExpectedSeconds: seconds,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("model output produced no usable sections")
	}
	return out, nil
}

const rewriteSystemPrompt = `You rewrite one line of a video ad script. Keep it a single spoken line,
roughly the same length, same section intent. Return only the rewritten line.`

func (s *scriptGenService) RewriteSection(ctx context.Context, section *types.Section, instruction string) (string, error) {
	if section == nil {
		return "", apperr.ErrInvalidArgument
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", fmt.Errorf("%w: instruction required", apperr.ErrInvalidArgument)
	}

	user := fmt.Sprintf("Section type: %s\nCurrent line: %s\nInstruction: %s", section.Type, section.Text, instruction)
	text, err := s.ai.GenerateText(ctx, rewriteSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("rewrite section: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.WithCode(apperr.CodeUnstructuredContent, fmt.Errorf("model returned an empty rewrite"))
	}
	return text, nil
}
