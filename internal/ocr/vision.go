package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// VisionConfig selects a vision-capable LLM used as an OCR engine.
type VisionConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	OllamaURL string        `yaml:"ollama_url"`
	OpenAIURL string        `yaml:"openai_url"`
	APIKey    string        `yaml:"-"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultVisionConfig targets a local Ollama.
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Provider:  "ollama",
		OllamaURL: "http://localhost:11434",
		OpenAIURL: "https://api.openai.com/v1/chat/completions",
		Timeout:   60 * time.Second,
	}
}

// VisionEngine transcribes book photos with Ollama or OpenAI vision models.
type VisionEngine struct {
	cfg        VisionConfig
	languages  string
	HTTPClient *http.Client
}

// NewVisionEngine validates the provider settings.
func NewVisionEngine(cfg VisionConfig, languages string) (*VisionEngine, error) {
	if cfg.Model == "" {
		cfg.Model = defaultVisionModel(cfg.Provider)
	}
	switch cfg.Provider {
	case "ollama":
		if cfg.OllamaURL == "" {
			return nil, fmt.Errorf("ollama URL not set")
		}
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.Provider)
	}
	return &VisionEngine{
		cfg:       cfg,
		languages: languages,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func defaultVisionModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

// Recognize implements Engine.
func (v *VisionEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}
	base64Image := base64.StdEncoding.EncodeToString(buf.Bytes())

	switch v.cfg.Provider {
	case "openai":
		return v.extractWithOpenAI(ctx, base64Image)
	default:
		return v.extractWithOllama(ctx, base64Image)
	}
}

// Close implements Engine.
func (v *VisionEngine) Close() error {
	return nil
}

func (v *VisionEngine) buildOCRPrompt() string {
	var langs []string
	for _, code := range strings.Split(v.languages, "+") {
		switch code {
		case "ita":
			langs = append(langs, "Italian")
		case "eng":
			langs = append(langs, "English")
		case "fra":
			langs = append(langs, "French")
		case "deu":
			langs = append(langs, "German")
		case "spa":
			langs = append(langs, "Spanish")
		}
	}
	languageLine := ""
	if len(langs) > 0 {
		languageLine = "\nThe text is most likely written in " + strings.Join(langs, " or ") + ".\n"
	}

	return `You are performing OCR (Optical Character Recognition) on a photo of a book cover or spine.

Your task is to extract ALL visible text from the image exactly as it appears, preserving:
- Line breaks
- Capitalization
- Accented characters
- Order of text elements from top to bottom
` + languageLine + `
OUTPUT FORMAT:
Provide ONLY the extracted text, one printed line per output line.
Do not include phrases like "Here is the text:" or "The image contains:".
If there is no readable text, return an empty response.

Example output:
IL NOME DELLA ROSA
Umberto Eco
Bompiani`
}

func (v *VisionEngine) extractWithOllama(ctx context.Context, base64Image string) (string, error) {
	requestBody := map[string]interface{}{
		"model":  v.cfg.Model,
		"prompt": v.buildOCRPrompt(),
		"images": []string{base64Image},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.0,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", strings.TrimRight(v.cfg.OllamaURL, "/")+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Ollama API for OCR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama OCR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode Ollama OCR response: %w", err)
	}

	slog.Debug("Vision OCR response", "provider", "ollama", "model", v.cfg.Model, "length", len(ollamaResp.Response))
	return ollamaResp.Response, nil
}

func (v *VisionEngine) extractWithOpenAI(ctx context.Context, base64Image string) (string, error) {
	requestBody := map[string]interface{}{
		"model": v.cfg.Model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": v.buildOCRPrompt(),
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": "data:image/jpeg;base64," + base64Image,
						},
					},
				},
			},
		},
		"max_tokens":  1000,
		"temperature": 0.0,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.cfg.OpenAIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API for OCR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openAI OCR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var openaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to decode OpenAI OCR response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no OCR response from OpenAI")
	}

	text := openaiResp.Choices[0].Message.Content
	slog.Debug("Vision OCR response", "provider", "openai", "model", v.cfg.Model, "length", len(text))
	return text, nil
}
