package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"latexcv/internal/config"
	"latexcv/internal/models"
)

type mockChatModel struct {
	content  string
	err      error
	block    bool
	messages []*schema.Message
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.messages = input
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.content}, nil
}

func TestBuildPromptDeterministic(t *testing.T) {
	def := models.TemplateDefinition{ID: models.TemplateIIT, DisplayName: "IIT", Body: `\documentclass{article}`}
	first, err := BuildPrompt("Jane Doe\fPage two", def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := BuildPrompt("Jane Doe\fPage two", def)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if again != first {
			t.Fatalf("prompt changed between calls:\n%q\n%q", first, again)
		}
	}
	for _, want := range []string{"Use the template style: IIT.", "Jane Doe\fPage two", `\documentclass{article}`, "Generate only LaTeX code"} {
		if !strings.Contains(first, want) {
			t.Fatalf("prompt missing %q:\n%s", want, first)
		}
	}
	if strings.Index(first, "Jane Doe") > strings.Index(first, `\documentclass`) {
		t.Fatal("resume text should precede the template body")
	}
}

func TestBuildPromptDoesNotEscape(t *testing.T) {
	def := models.TemplateDefinition{ID: models.TemplateSoftware, Body: `\textbf{<b>} & 50\%`}
	got, err := BuildPrompt("R&D <lead>", def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(got, `\textbf{<b>} & 50\%`) || !strings.Contains(got, "R&D <lead>") {
		t.Fatalf("prompt content was altered: %s", got)
	}
	if !strings.Contains(got, "template style: software.") {
		t.Fatalf("expected id fallback for display name: %s", got)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```latex\n\\documentclass{article}\n```", `\documentclass{article}`},
		{"  \n```latex\nbody\n```\n\n", "body"},
		{"```tex\nbody\n```", "body"},
		{"```\nbody\n```", "body"},
		{"\\documentclass{article}", `\documentclass{article}`},
		{"   plain   ", "plain"},
		{"```latex\n```latex\nnested\n```\n```", "nested"},
		{"```LaTeX\n\\documentclass{article}\n```", `\documentclass{article}`},
		{"```Latex \r\nbody\n```", "body"},
		{"```TEX\nbody\n```", "body"},
		{"\\documentclass{article}\n% end```", "\\documentclass{article}\n% end```"},
		{"body\n```", "body\n```"},
		{"", ""},
	}
	for _, tc := range cases {
		in, want := tc.in, tc.want
		got := StripFences(in)
		if got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", in, got, want)
		}
		if again := StripFences(got); again != got {
			t.Fatalf("StripFences not idempotent for %q: %q then %q", in, got, again)
		}
	}
}

func TestGenerateStripsFenceAndSendsPrompt(t *testing.T) {
	m := &mockChatModel{content: "```latex\n\\documentclass{article}\n\\begin{document}Hi\\end{document}\n```"}
	g := NewGeneratorWithModel(m, 0, nil)

	got, err := g.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(got, `\documentclass`) || strings.Contains(got, "```") {
		t.Fatalf("unexpected output %q", got)
	}
	if len(m.messages) != 1 || m.messages[0].Role != schema.User || m.messages[0].Content != "the prompt" {
		t.Fatalf("unexpected messages %+v", m.messages)
	}
}

func TestGenerateWrapsErrors(t *testing.T) {
	g := NewGeneratorWithModel(&mockChatModel{err: errors.New("quota exceeded")}, 0, nil)
	_, err := g.Generate(context.Background(), "p")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("upstream text lost: %v", err)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	g := NewGeneratorWithModel(&mockChatModel{content: "```latex\n```"}, 0, nil)
	if _, err := g.Generate(context.Background(), "p"); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	g := NewGeneratorWithModel(&mockChatModel{block: true}, 20*time.Millisecond, nil)
	start := time.Now()
	_, err := g.Generate(context.Background(), "p")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not applied")
	}
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), config.AIConfig{Provider: "llama", APIKey: "k"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), config.AIConfig{Provider: "gemini"}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
