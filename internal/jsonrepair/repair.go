// Package jsonrepair coerces near-JSON LLM output into parsed values,
// with a single model-assisted repair attempt on parse failure.
package jsonrepair

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/pkg/anthropic"
)

// ErrUnparsable is returned when output cannot be converted to JSON
// even after the repair round trip. Callers skip the affected factor
// rather than failing the whole assessment.
var ErrUnparsable = eris.New("jsonrepair: output not valid JSON")

const fixerPrompt = `The assistant produced the following response which is intended to be %s, but it is not valid JSON. Convert it into valid JSON matching that shape. Preserve as much information as possible from the original output. Return ONLY the JSON, no explanations.

RAW_OUTPUT:
%s`

// Repairer parses LLM output, asking the completion provider to re-emit
// cleaner JSON once when the direct parse fails.
type Repairer struct {
	completions anthropic.Client
	model       string
	maxTokens   int64
}

// New creates a Repairer backed by the given completion client.
func New(completions anthropic.Client, model string) *Repairer {
	return &Repairer{
		completions: completions,
		model:       model,
		maxTokens:   3000,
	}
}

// Parse strips markdown fencing from raw and parses it as JSON. On
// failure it runs one fixer round trip through the completion provider;
// if that also fails to parse, ErrUnparsable is returned. schemaHint
// describes the expected shape to the fixer (e.g. "a single JSON object
// with keys tech_stack and rationale").
func (r *Repairer) Parse(ctx context.Context, raw, schemaHint string) (any, error) {
	cleaned := Clean(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, nil
	}

	zap.L().Debug("jsonrepair: direct parse failed, attempting repair",
		zap.Int("raw_len", len(raw)),
	)

	resp, err := r.completions.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(fixerPrompt, schemaHint, cleaned)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(ErrUnparsable, err.Error())
	}

	fixed := Clean(resp.Text())
	if err := json.Unmarshal([]byte(fixed), &v); err != nil {
		return nil, eris.Wrap(ErrUnparsable, err.Error())
	}
	return v, nil
}

// Clean strips surrounding whitespace and a markdown code fence with an
// optional leading json language tag. Text that is already bare JSON
// passes through unchanged, so cleaning is idempotent.
func Clean(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		text = strings.TrimPrefix(text, "json")
	}

	return strings.TrimSpace(text)
}
