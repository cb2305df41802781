package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// ContentGenerator is the subset of genai.Models used for extraction.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiStrategy delegates extraction to a Gemini model.
type GeminiStrategy struct {
	models      ContentGenerator
	model       string
	temperature float32
	system      string
}

// NewGeminiClient creates a genai client. An empty apiKey lets the SDK read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return client, nil
}

// NewGeminiStrategy wraps models; model defaults to DefaultModelName.
func NewGeminiStrategy(models ContentGenerator, model string) *GeminiStrategy {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiStrategy{
		models:      models,
		model:       model,
		temperature: DefaultModelTemperature,
		system:      buildSystemPrompt(),
	}
}

func (g *GeminiStrategy) Extract(ctx context.Context, req Request) (domain.Result, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildUserPrompt(req)}},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temperature),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.system}}},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("GeminiStrategy.Extract: generate content: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("GeminiStrategy.Extract: nil response from model")
	}
	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiStrategy.Extract: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var parsed map[string]interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("GeminiStrategy.Extract: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	result, err := decodeModelResult(parsed)
	if err != nil {
		return nil, fmt.Errorf("GeminiStrategy.Extract: %w", err)
	}
	return result, nil
}

// cleanModelJSON strips Markdown fences and anything outside the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var (
	_ Strategy         = (*GeminiStrategy)(nil)
	_ ContentGenerator = (*genai.Models)(nil)
)
