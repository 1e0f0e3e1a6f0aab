package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("invalid json from LLM")

// LLMClient is the text-generation collaborator. The caller hands over a
// prompt plus a JSON-serializable input and gets the model's JSON back; the
// client is treated as opaque, slow and fallible.
type LLMClient interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}
