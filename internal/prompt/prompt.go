// Package prompt merges the configured prompt templates with user and
// weather input into final prompt strings.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/weathersense/weathersense/internal/models"
)

// ErrTemplateUnavailable is returned when the prompt configuration cannot be
// loaded or lacks a requested key. Callers surface an inline error message
// rather than aborting the page.
var ErrTemplateUnavailable = errors.New("prompt template unavailable")

const contextPrefix = "Current weather context:\n"

// Builder holds the two named templates loaded once at startup.
type Builder struct {
	summary string
	chat    string
}

type promptsFile struct {
	SummaryPrompt string `json:"summary_prompt"`
	ChatPrompt    string `json:"chat_prompt"`
}

// Load reads the prompt configuration document (prompts.json). Both keys
// must be present and non-empty.
func Load(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTemplateUnavailable, path, err)
	}

	var pf promptsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrTemplateUnavailable, path, err)
	}
	if strings.TrimSpace(pf.SummaryPrompt) == "" {
		return nil, fmt.Errorf("%w: missing summary_prompt in %s", ErrTemplateUnavailable, path)
	}
	if strings.TrimSpace(pf.ChatPrompt) == "" {
		return nil, fmt.Errorf("%w: missing chat_prompt in %s", ErrTemplateUnavailable, path)
	}

	return &Builder{
		summary: pf.SummaryPrompt,
		chat:    pf.ChatPrompt,
	}, nil
}

// Build merges a template with input. For summary prompts, input is the
// weather context text. For chat prompts, input is the user message and
// contextText, when non-empty, is prefixed before it.
func (b *Builder) Build(kind models.PromptKind, input, contextText string) (string, error) {
	switch kind {
	case models.PromptSummary:
		return b.summary + input, nil
	case models.PromptChat:
		if contextText != "" {
			return b.chat + contextPrefix + contextText + "\n\nUser question: " + input, nil
		}
		return b.chat + input, nil
	default:
		return "", fmt.Errorf("%w: unknown prompt kind %q", ErrTemplateUnavailable, kind)
	}
}
