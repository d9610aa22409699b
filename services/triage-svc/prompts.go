package main

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptsFS embed.FS

type PromptTemplate struct {
	Config   *PromptConfig
	Template *template.Template
}

type PromptConfig struct {
	Version     string `yaml:"version"`
	Description string `yaml:"description"`

	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	NumCtx      *int     `yaml:"num_ctx"`
	NumPredict  *int     `yaml:"num_predict"`
}

// ApplyTo copies the prompt's generation settings into an Ollama options
// map, leaving unset values at the server's defaults.
func (c *PromptConfig) ApplyTo(options map[string]any) {
	if c == nil || options == nil {
		return
	}
	if c.Temperature != nil {
		options["temperature"] = *c.Temperature
	}
	if c.NumCtx != nil {
		options["num_ctx"] = *c.NumCtx
	}
	if c.NumPredict != nil {
		options["num_predict"] = *c.NumPredict
	}
}

type PromptLibrary struct {
	Triage *PromptTemplate
}

type PromptPair struct {
	System string
	User   string
	Config *PromptConfig
}

func NewPromptLibrary(fsys fs.FS) (*PromptLibrary, error) {
	triage, err := loadPromptTemplate(fsys, "prompts/triage.md")
	if err != nil {
		return nil, err
	}
	return &PromptLibrary{Triage: triage}, nil
}

func (p *PromptLibrary) RenderTriagePrompt(transcript string) (*PromptPair, error) {
	if p == nil || p.Triage == nil {
		return nil, fmt.Errorf("prompt library is not initialized")
	}
	data := struct{ Transcript string }{Transcript: transcript}
	return renderPromptPair(p.Triage, data)
}

func renderPromptPair(prompt *PromptTemplate, data any) (*PromptPair, error) {
	var systemBuf, userBuf bytes.Buffer

	if prompt.Template.Lookup("system") != nil {
		if err := prompt.Template.ExecuteTemplate(&systemBuf, "system", data); err != nil {
			return nil, fmt.Errorf("render system prompt: %w", err)
		}
	}

	if err := prompt.Template.ExecuteTemplate(&userBuf, "user", data); err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	return &PromptPair{
		System: strings.TrimSpace(systemBuf.String()),
		User:   strings.TrimSpace(userBuf.String()),
		Config: prompt.Config,
	}, nil
}

func loadPromptTemplate(fsys fs.FS, path string) (*PromptTemplate, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	frontmatter, body, hasFrontmatter, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}
	if !hasFrontmatter {
		return nil, fmt.Errorf("prompt config missing frontmatter")
	}

	tmpl, err := template.New(path).Parse(body)
	if err != nil {
		return nil, err
	}

	parsed, err := parsePromptConfig(frontmatter)
	if err != nil {
		return nil, err
	}

	slog.Info("loaded prompt", "path", path, "version", parsed.Version, "description", parsed.Description)
	return &PromptTemplate{
		Config:   parsed,
		Template: tmpl,
	}, nil
}

func splitFrontmatter(input string) (string, string, bool, error) {
	const delimiter = "---\n"
	normalizedNewlines := strings.ReplaceAll(input, "\r\n", "\n")
	if !strings.HasPrefix(normalizedNewlines, delimiter) {
		return "", input, false, nil
	}

	parts := strings.SplitN(normalizedNewlines, delimiter, 3)
	if len(parts) < 3 {
		return "", input, false, fmt.Errorf("malformed frontmatter: closing delimiter not found")
	}

	return strings.TrimRight(parts[1], "\n"), strings.TrimLeft(parts[2], "\n"), true, nil
}

func parsePromptConfig(frontmatter string) (*PromptConfig, error) {
	if strings.TrimSpace(frontmatter) == "" {
		return nil, fmt.Errorf("prompt config missing model")
	}

	var config PromptConfig
	if err := yaml.Unmarshal([]byte(frontmatter), &config); err != nil {
		return nil, fmt.Errorf("parse prompt config: %w", err)
	}

	config.Model = strings.TrimSpace(config.Model)
	if config.Model == "" {
		return nil, fmt.Errorf("prompt config missing model")
	}

	return &config, nil
}
