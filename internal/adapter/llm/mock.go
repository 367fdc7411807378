package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator answers without calling a model. It echoes the first line of
// the prompt that starts with "Source:", which is enough for local demos.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Source:") {
			return fmt.Sprintf("Mock answer grounded in %s.", strings.TrimSpace(strings.TrimPrefix(line, "Source:"))), nil
		}
	}
	return `{"summary": "Mock summary.", "keyClauses": "- none", "potentialRisks": "- none"}`, nil
}

func (g *MockGenerator) ModelName() string {
	return "mock"
}
