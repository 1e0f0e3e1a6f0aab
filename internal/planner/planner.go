package planner

import (
	"context"
	"encoding/json"
	"strings"

	"mergemap/internal/llmclient"
	"mergemap/internal/types"
)

const mergePrompt = `You are an integration planner. You receive the static
analyses of two codebases: "source" is being merged into "target". Each
analysis lists per-file import dependencies, discovered class patterns with
their methods, and documentation excerpts.

Produce a pragmatic integration plan: which source modules map onto which
target modules, which dependencies conflict, and the order of integration
steps. Respond as JSON: {"merge_strategy": "<the plan as plain text>"}.`

type plannerInput struct {
	SourceReport *types.AnalysisReport `json:"source_report"`
	TargetReport *types.AnalysisReport `json:"target_report"`
}

type plannerOutput struct {
	MergeStrategy string `json:"merge_strategy"`
}

// MergeStrategy asks the text-generation collaborator for an integration
// plan over two analysis reports. The two reports serialized as JSON are the
// entire input contract; the collaborator's failure never touches them.
func MergeStrategy(ctx context.Context, llm llmclient.LLMClient, source, target *types.AnalysisReport) (string, error) {
	raw, err := llm.GenerateJSON(ctx, mergePrompt, plannerInput{SourceReport: source, TargetReport: target})
	if err != nil {
		return "", &types.CollaboratorError{Collaborator: "generate", Err: err}
	}

	var out plannerOutput
	if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.MergeStrategy) != "" {
		return out.MergeStrategy, nil
	}
	// Some models reply with a bare JSON string instead of the object form.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return s, nil
	}
	return "", &types.CollaboratorError{Collaborator: "generate", Err: llmclient.ErrInvalidJSON}
}
