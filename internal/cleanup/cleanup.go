// Package cleanup asks an LLM to fix OCR mistakes in recognized book text.
// The model must answer with JSON that validates against a fixed schema;
// anything else is rejected and the caller keeps the original text.
package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/booksnap/booksnap/internal/gemini"
	"github.com/booksnap/booksnap/internal/ollama"
	"github.com/booksnap/booksnap/internal/openai"
	"github.com/booksnap/booksnap/internal/providers"
)

const responseSchema = `{
  "type": "object",
  "required": ["lines"],
  "properties": {
    "lines": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "corrections": {"type": "integer", "minimum": 0}
  }
}`

// Config selects the provider used for cleanup.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	OllamaURL    string        `yaml:"ollama_url"`
	OpenAIAPIKey string        `yaml:"-"`
	GeminiAPIKey string        `yaml:"-"`
}

// DefaultConfig leaves cleanup disabled.
func DefaultConfig() Config {
	return Config{
		Provider:    "ollama",
		Model:       "llama3.1",
		Temperature: 0.1,
		Timeout:     15 * time.Second,
		OllamaURL:   "http://localhost:11434",
	}
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg Config) (providers.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(cfg.OllamaURL), nil
	case "openai":
		return openai.New(cfg.OpenAIAPIKey), nil
	case "gemini":
		return gemini.New(cfg.GeminiAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported cleanup provider: %s", cfg.Provider)
	}
}

// Cleaner implements ocr.Cleaner on top of an LLM provider.
type Cleaner struct {
	cfg      Config
	provider providers.Provider
	schema   *jsonschema.Schema
	logger   *slog.Logger
}

// New compiles the response schema and returns a Cleaner.
func New(cfg Config, provider providers.Provider, logger *slog.Logger) (*Cleaner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("cleanup.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	schema, err := compiler.Compile("cleanup.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Cleaner{cfg: cfg, provider: provider, schema: schema, logger: logger}, nil
}

// Clean returns the corrected text, one line per printed line.
func (c *Cleaner) Clean(ctx context.Context, text string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	raw, err := c.provider.Generate(ctx, providers.Request{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Prompt:      buildPrompt(text),
		JSON:        true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", c.provider.Name(), err)
	}

	data := []byte(stripFences(raw))
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("failed to parse cleanup response: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return "", fmt.Errorf("cleanup response does not match schema: %w", err)
	}

	var resp struct {
		Lines       []string `json:"lines"`
		Corrections int      `json:"corrections"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode cleanup response: %w", err)
	}

	c.logger.Debug("Cleaned OCR text", "provider", c.provider.Name(), "corrections", resp.Corrections, "lines", len(resp.Lines))
	return strings.Join(resp.Lines, "\n"), nil
}

func buildPrompt(text string) string {
	return `The following lines were read by OCR from a photo of a book cover or spine.
Fix obvious recognition mistakes (for example 0 read instead of O, | instead of I,
broken accents in Italian words) without inventing new words or reordering lines.
Drop lines that are pure noise.

Respond with a JSON object of the form {"lines": ["..."], "corrections": <number of lines changed>}.

OCR TEXT:
` + text
}

// stripFences removes a ```json fenced block wrapper some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
