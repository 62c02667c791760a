package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"latexcv/internal/config"
)

// ErrGeneration wraps every transport or provider failure from the model.
var ErrGeneration = errors.New("latex generation failed")

// ChatModel is the part of an eino chat model the generator needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Generator turns a prompt into LaTeX source through a chat model. It never retries.
type Generator struct {
	chatModel ChatModel
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGenerator builds the chat model for cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation api key is not configured")
	}
	temperature := cfg.Temperature
	topP := cfg.TopP
	maxTokens := cfg.MaxTokens

	var chatModel ChatModel
	var err error
	switch cfg.Provider {
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if cerr != nil {
			return nil, fmt.Errorf("gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	case "claude":
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     baseURL,
			MaxTokens:   maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s model: %w", cfg.Provider, err)
	}
	return NewGeneratorWithModel(chatModel, cfg.Timeout, logger), nil
}

// NewGeneratorWithModel wraps an existing chat model. A zero timeout leaves
// the call bounded only by ctx.
func NewGeneratorWithModel(chatModel ChatModel, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{chatModel: chatModel, timeout: timeout, logger: logger}
}

// Generate sends prompt to the model and returns the LaTeX with any Markdown
// fence removed.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	latex := StripFences(resp.Content)
	if latex == "" {
		return "", fmt.Errorf("%w: model returned no content", ErrGeneration)
	}
	g.logger.Debug("latex generated", "chars", len(latex), "elapsed", time.Since(start))
	return latex, nil
}

// fenceOpener matches a leading fence line with an optional language tag in any case.
var fenceOpener = regexp.MustCompile("^```[A-Za-z]*[ \t]*(?:\r?\n|$)")

// StripFences trims whitespace and removes a Markdown code fence around the
// response. A closing fence is only removed together with an opening one.
// Applying it to its own output returns the same string.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	for {
		loc := fenceOpener.FindStringIndex(s)
		if loc == nil {
			return s
		}
		body := strings.TrimSpace(s[loc[1]:])
		s = strings.TrimSpace(strings.TrimSuffix(body, "```"))
	}
}
