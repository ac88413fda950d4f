// Package ai wraps the text-generation backends used for ticket diagnosis.
package ai

import "context"

// TextGenerator turns a system instruction and a user prompt into a single
// JSON object response.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}
