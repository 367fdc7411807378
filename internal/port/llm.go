package port

import "context"

// Generator produces text from instructions and a prompt.
type Generator interface {
	// Generate returns the model's answer. instructions plays the role of a
	// system prompt.
	Generate(ctx context.Context, instructions, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
