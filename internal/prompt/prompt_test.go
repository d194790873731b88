package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weathersense/weathersense/internal/models"
)

func writePrompts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}
	return path
}

const validPrompts = `{"summary_prompt":"Summarize this weather:\n","chat_prompt":"Answer the question.\n\n"}`

func TestLoad_Valid(t *testing.T) {
	b, err := Load(writePrompts(t, validPrompts))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if b == nil {
		t.Fatal("Load returned nil builder")
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{not json`},
		{"missing summary", `{"chat_prompt":"x"}`},
		{"missing chat", `{"summary_prompt":"x"}`},
		{"whitespace only", `{"summary_prompt":"  ","chat_prompt":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writePrompts(t, tt.content))
			if !errors.Is(err, ErrTemplateUnavailable) {
				t.Errorf("Load error = %v, want ErrTemplateUnavailable", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrTemplateUnavailable) {
		t.Errorf("Load error = %v, want ErrTemplateUnavailable", err)
	}
}

func TestBuild_Summary(t *testing.T) {
	b, err := Load(writePrompts(t, validPrompts))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	got, err := b.Build(models.PromptSummary, "Lawrence, KS\nSunday: High 45°F", "")
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	want := "Summarize this weather:\nLawrence, KS\nSunday: High 45°F"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestBuild_ChatWithContext(t *testing.T) {
	b, err := Load(writePrompts(t, validPrompts))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	got, err := b.Build(models.PromptChat, "Will it rain tomorrow?", "Sunday: Rain 0in")
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if !strings.HasPrefix(got, "Answer the question.\n\nCurrent weather context:\nSunday: Rain 0in") {
		t.Errorf("Build = %q, context not prefixed", got)
	}
	if !strings.HasSuffix(got, "User question: Will it rain tomorrow?") {
		t.Errorf("Build = %q, user question not appended", got)
	}
}

func TestBuild_ChatWithoutContext(t *testing.T) {
	b, err := Load(writePrompts(t, validPrompts))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	got, err := b.Build(models.PromptChat, "Hello", "")
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if got != "Answer the question.\n\nHello" {
		t.Errorf("Build = %q", got)
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	b, err := Load(writePrompts(t, validPrompts))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if _, err := b.Build(models.PromptKind("poem"), "x", ""); err == nil {
		t.Error("Build with unknown kind: want error, got nil")
	}
}
