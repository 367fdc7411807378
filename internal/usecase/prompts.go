package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"legalrag/internal/domain"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

const contextSeparator = "\n\n---\n\n"

// Prompts holds the parsed instruction and prompt templates.
type Prompts struct {
	answerInstructions   string
	answerPrompt         *template.Template
	analysisInstructions string
	analysisPrompt       *template.Template
}

type answerData struct {
	Context string
	Query   string
}

type analysisData struct {
	Text string
}

// LoadPrompts parses the embedded templates.
func LoadPrompts() (*Prompts, error) {
	answerInstructions, err := readTemplate("answer_instructions.txt")
	if err != nil {
		return nil, err
	}
	analysisInstructions, err := readTemplate("analysis_instructions.txt")
	if err != nil {
		return nil, err
	}
	answerPrompt, err := parseTemplate("answer_prompt.txt")
	if err != nil {
		return nil, err
	}
	analysisPrompt, err := parseTemplate("analysis_prompt.txt")
	if err != nil {
		return nil, err
	}

	return &Prompts{
		answerInstructions:   answerInstructions,
		answerPrompt:         answerPrompt,
		analysisInstructions: analysisInstructions,
		analysisPrompt:       analysisPrompt,
	}, nil
}

// MustLoadPrompts is LoadPrompts for package initialization.
func MustLoadPrompts() *Prompts {
	p, err := LoadPrompts()
	if err != nil {
		panic(err)
	}
	return p
}

func readTemplate(name string) (string, error) {
	content, err := promptTemplates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("template not found: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func parseTemplate(name string) (*template.Template, error) {
	content, err := readTemplate(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// AnswerInstructions returns the system instructions for grounded answers.
func (p *Prompts) AnswerInstructions() string { return p.answerInstructions }

// RenderAnswer renders the question prompt around an assembled context.
func (p *Prompts) RenderAnswer(context, query string) (string, error) {
	return render(p.answerPrompt, answerData{Context: context, Query: query})
}

// AnalysisInstructions returns the system instructions for document analysis.
func (p *Prompts) AnalysisInstructions() string { return p.analysisInstructions }

// RenderAnalysis renders the analysis prompt for a document text.
func (p *Prompts) RenderAnalysis(text string) (string, error) {
	return render(p.analysisPrompt, analysisData{Text: text})
}

// BuildContext joins ranked results into labeled blocks, most relevant first.
func BuildContext(results []domain.RankedResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", r.Record.DocumentName, r.Record.ChunkText))
	}
	return strings.Join(blocks, contextSeparator)
}
