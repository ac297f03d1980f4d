package normalizer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/normalize.v1.yaml
var defaultPromptYAML []byte

// Prompt is the versioned instruction set sent ahead of every document.
type Prompt struct {
	Version              string   `yaml:"version" json:"version"`
	Name                 string   `yaml:"name" json:"name"`
	Task                 string   `yaml:"task" json:"task"`
	Rules                []string `yaml:"rules" json:"rules"`
	CodeBlockPlaceholder string   `yaml:"code_block_placeholder" json:"code_block_placeholder"`
	TablePlaceholder     string   `yaml:"table_placeholder" json:"table_placeholder"`
}

// DefaultPrompt returns the embedded prompt.
func DefaultPrompt() *Prompt {
	p, err := ParsePrompt(defaultPromptYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded normalization prompt: %v", err))
	}
	return p
}

// LoadPrompt reads a prompt from path, or returns the embedded default when
// path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	if path == "" {
		return DefaultPrompt(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt: %w", err)
	}
	p, err := ParsePrompt(data)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", path, err)
	}
	return p, nil
}

// ParsePrompt decodes and validates a YAML prompt.
func ParsePrompt(data []byte) (*Prompt, error) {
	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing prompt: %w", err)
	}
	if p.Version == "" {
		return nil, fmt.Errorf("prompt has no version")
	}
	if strings.TrimSpace(p.Task) == "" || len(p.Rules) == 0 {
		return nil, fmt.Errorf("prompt %q needs a task and at least one rule", p.Version)
	}
	return &p, nil
}

// Render builds the single user message: the JSON instruction object, a
// blank line, then the document.
func (p *Prompt) Render(document string) string {
	instr, _ := json.Marshal(p)
	var sb strings.Builder
	sb.Grow(len(instr) + 2 + len(document))
	sb.Write(instr)
	sb.WriteString("\n\n")
	sb.WriteString(document)
	return sb.String()
}
