package tool

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool describes a conversational capability and the envelope it runs under.
type Tool struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Aliases           []string `json:"aliases,omitempty" yaml:"aliases"`
	MaxUserMessages   int      `json:"maxUserMessages" yaml:"max_user_messages"`
	MaxSessionsPerDay int      `json:"maxSessionsPerDay" yaml:"max_sessions_per_day"`
	Prompt            string   `json:"-" yaml:"prompt"`
}

type catalogFile struct {
	Tools []Tool `yaml:"tools"`
}

//go:embed tools.yaml
var defaultCatalog []byte

// Seed returns the built-in tool catalog.
func Seed() []Tool {
	tools, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded tool catalog is invalid: %v", err))
	}
	return tools
}

// LoadCatalog reads a YAML catalog from disk. An empty path yields the built-in catalog.
func LoadCatalog(path string) ([]Tool, error) {
	if strings.TrimSpace(path) == "" {
		return Seed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) ([]Tool, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("tool catalog defines no tools")
	}

	seen := make(map[string]string)
	for i := range file.Tools {
		t := &file.Tools[i]
		t.ID = strings.TrimSpace(t.ID)
		t.Prompt = strings.TrimSpace(t.Prompt)
		if err := t.validate(); err != nil {
			return nil, err
		}
		for _, name := range append([]string{t.ID}, t.Aliases...) {
			if owner, dup := seen[name]; dup {
				return nil, fmt.Errorf("tool name %q used by both %s and %s", name, owner, t.ID)
			}
			seen[name] = t.ID
		}
	}
	return file.Tools, nil
}

func (t Tool) validate() error {
	if t.ID == "" {
		return fmt.Errorf("tool id is required")
	}
	if t.MaxUserMessages < 1 {
		return fmt.Errorf("tool %s: max_user_messages must be positive", t.ID)
	}
	if t.MaxSessionsPerDay < 1 {
		return fmt.Errorf("tool %s: max_sessions_per_day must be positive", t.ID)
	}
	if t.Prompt == "" {
		return fmt.Errorf("tool %s: prompt is required", t.ID)
	}
	return nil
}
