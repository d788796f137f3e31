package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"literary-rag/internal/config"
	"literary-rag/internal/lazy"
)

// Backend selects the generation service. It is resolved once from the
// configuration.
type Backend int

const (
	OpenAI Backend = iota + 1
	Gemini
	HostedEndpoint
)

func (b Backend) String() string {
	switch b {
	case OpenAI:
		return "openai"
	case Gemini:
		return "gemini"
	case HostedEndpoint:
		return "hosted"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend accepts the config names and the labels the chat UI shows.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt", "gpt-4", "chatgpt":
		return OpenAI, nil
	case "gemini", "google", "googleai":
		return Gemini, nil
	case "hosted", "endpoint", "hf", "huggingface", "tgi", "meltemi", "krikri":
		return HostedEndpoint, nil
	default:
		return 0, fmt.Errorf("unknown generation backend %q", s)
	}
}

type OpenAIConfig struct {
	Model   string
	Key     string
	BaseURL string
}

type GeminiConfig struct {
	Model string
	Key   string
}

// HostedConfig is an OpenAI compatible inference endpoint (a Hugging Face
// TGI endpoint, vLLM, OpenRouter).
type HostedConfig struct {
	URL   string
	Token string
	Model string
}

type Config struct {
	Backend    Backend
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Hosted     HostedConfig
	MaxRetries int
}

// ConfigFrom resolves the backend tag and copies the matching settings.
func ConfigFrom(cfg config.GenerationConfig) (Config, error) {
	b, err := ParseBackend(cfg.Backend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Backend:    b,
		OpenAI:     OpenAIConfig{Model: cfg.OpenAI.Model, Key: cfg.OpenAI.Key, BaseURL: cfg.OpenAI.BaseURL},
		Gemini:     GeminiConfig{Model: cfg.Gemini.Model, Key: cfg.Gemini.Key},
		Hosted:     HostedConfig{URL: cfg.Hosted.BaseURL, Token: cfg.Hosted.Key, Model: cfg.Hosted.Model},
		MaxRetries: cfg.MaxRetries,
	}, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case OpenAI:
		if c.OpenAI.Model == "" {
			return errors.New("openai: model is required")
		}
	case Gemini:
		if c.Gemini.Model == "" {
			return errors.New("gemini: model is required")
		}
	case HostedEndpoint:
		if c.Hosted.URL == "" {
			return errors.New("hosted: endpoint url is required")
		}
	default:
		return fmt.Errorf("unknown backend %v", c.Backend)
	}
	return nil
}

// NewModel builds the langchaingo client for the backend.
func NewModel(ctx context.Context, c Config) (llms.Model, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	log.Debug().Str("backend", c.Backend.String()).Msg("Creating chat model")

	switch c.Backend {
	case OpenAI:
		opts := []openai.Option{
			openai.WithModel(c.OpenAI.Model),
			openai.WithToken(strings.TrimPrefix(c.OpenAI.Key, "Bearer ")),
		}
		if c.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.OpenAI.BaseURL))
		}
		return openai.New(opts...)
	case Gemini:
		return googleai.New(ctx,
			googleai.WithAPIKey(c.Gemini.Key),
			googleai.WithDefaultModel(c.Gemini.Model),
		)
	default:
		return openai.New(
			openai.WithBaseURL(c.Hosted.URL),
			openai.WithToken(strings.TrimPrefix(c.Hosted.Token, "Bearer ")),
			openai.WithModel(c.Hosted.Model),
		)
	}
}

// NewHelperModel builds the auxiliary model used for reranking from a plain
// endpoint config; Provider is "openai", "gemini" or "ollama".
func NewHelperModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
	case "gemini", "googleai":
		return NewModel(ctx, Config{Backend: Gemini, Gemini: GeminiConfig{Model: cfg.Model, Key: cfg.Key}})
	case "openai", "":
		return NewModel(ctx, Config{Backend: OpenAI, OpenAI: OpenAIConfig{Model: cfg.Model, Key: cfg.Key, BaseURL: cfg.BaseURL}})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// LazyModel builds the wrapped model on first use and shares it afterwards.
type LazyModel struct {
	v *lazy.Value[llms.Model]
}

var _ llms.Model = (*LazyModel)(nil)

func NewLazyModel(build func(ctx context.Context) (llms.Model, error)) *LazyModel {
	return &LazyModel{v: lazy.New(build)}
}

func (m *LazyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	model, err := m.v.Get(ctx)
	if err != nil {
		return nil, err
	}
	return model.GenerateContent(ctx, messages, options...)
}

func (m *LazyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Generator sends a rendered prompt to the configured backend.
type Generator struct {
	backend Backend
	model   llms.Model
	retries int
}

// New returns a generator whose client is created on the first request.
func New(c Config) (*Generator, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	model := NewLazyModel(func(ctx context.Context) (llms.Model, error) {
		return NewModel(ctx, c)
	})
	return NewGenerator(c.Backend, model, c.MaxRetries), nil
}

func NewGenerator(backend Backend, model llms.Model, retries int) *Generator {
	return &Generator{backend: backend, model: model, retries: max(retries, 0)}
}

func (g *Generator) Backend() Backend { return g.backend }

// Generate returns the text of the first choice. Failed calls are retried
// up to the configured count with an exponential backoff.
func (g *Generator) Generate(ctx context.Context, messages []llms.MessageContent, temperature float64) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 0

	attempt := 0
	content, err := backoff.RetryNotifyWithData(func() (string, error) {
		attempt++
		resp, err := g.model.GenerateContent(ctx, messages, llms.WithTemperature(temperature))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", backoff.Permanent(errors.New("model returned no choices"))
		}
		return resp.Choices[0].Content, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.retries)), ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("backend", g.backend.String()).Msg("Retrying generation")
	})
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", g.backend, err)
	}
	return content, nil
}
