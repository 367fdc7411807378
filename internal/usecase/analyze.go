package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"legalrag/internal/domain"
	"legalrag/internal/port"
)

const DefaultAnalysisMaxChars = 30000

// AnalyzeUseCase asks the generator for a structured review of a document.
type AnalyzeUseCase struct {
	generator port.Generator
	prompts   *Prompts
	logger    *slog.Logger
	maxChars  int
	timeout   time.Duration
}

// NewAnalyzeUseCase creates an analyze use case. maxChars <= 0 uses the
// default truncation limit.
func NewAnalyzeUseCase(generator port.Generator, maxChars int, timeout time.Duration, logger *slog.Logger) *AnalyzeUseCase {
	if maxChars <= 0 {
		maxChars = DefaultAnalysisMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		generator: generator,
		prompts:   MustLoadPrompts(),
		logger:    logger,
		maxChars:  maxChars,
		timeout:   timeout,
	}
}

func (u *AnalyzeUseCase) Analyze(ctx context.Context, text string) (*domain.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyDocument
	}

	prompt, err := u.prompts.RenderAnalysis(truncateRunes(text, u.maxChars))
	if err != nil {
		return nil, err
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	raw, err := u.generator.Generate(ctx, u.prompts.AnalysisInstructions(), prompt)
	if err != nil {
		return nil, &domain.GenerationError{Stage: domain.StageAnalyze, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &domain.GenerationError{Stage: domain.StageAnalyze, Err: errors.New("empty response")}
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		u.logger.Warn("analysis response rejected", "model", u.generator.ModelName(), "error", err)
		return nil, err
	}
	return analysis, nil
}

// ParseAnalysis decodes a generator response into an Analysis. Markdown code
// fences around the JSON are ignored. A field given as a list of strings is
// rendered as a markdown bullet list.
func ParseAnalysis(raw string) (*domain.Analysis, error) {
	cleaned := stripFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
	}

	var analysis domain.Analysis
	targets := map[string]*string{
		"summary":        &analysis.Summary,
		"keyClauses":     &analysis.KeyClauses,
		"potentialRisks": &analysis.PotentialRisks,
	}
	for key, dst := range targets {
		msg, ok := fields[key]
		if !ok {
			continue
		}
		value, err := decodeField(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", domain.ErrMalformedAnalysis, key, err)
		}
		*dst = value
	}
	return &analysis, nil
}

func decodeField(msg json.RawMessage) (string, error) {
	if string(msg) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}

	var list []string
	if err := json.Unmarshal(msg, &list); err != nil {
		return "", errors.New("expected string or list of strings")
	}
	lines := make([]string, len(list))
	for i, item := range list {
		lines[i] = "- " + strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), "-"))
	}
	return strings.Join(lines, "\n"), nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
