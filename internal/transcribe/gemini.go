// Package transcribe turns recorded speech into text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultMIMEType is the voice-note format Telegram-style clients send.
	DefaultMIMEType = "audio/ogg"
	// DefaultLanguage is the spoken language hint.
	DefaultLanguage = "ru-RU"
)

const transcribePrompt = `Распознай речь в аудио и верни только текст на русском языке, без пояснений.
Числа записывай цифрами. Если речи нет, верни пустую строку.`

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ContentGenerator is the subset of genai.Models used for transcription.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini sends audio inline to a Gemini model.
type Gemini struct {
	models ContentGenerator
	model  string
}

// NewGemini wraps models; model is required.
func NewGemini(models ContentGenerator, model string) *Gemini {
	return &Gemini{models: models, model: model}
}

// ErrNoSpeech is returned when the audio contained nothing recognizable.
var ErrNoSpeech = errors.New("no speech recognized")

func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("Gemini.Transcribe: empty audio")
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     audio,
					},
				},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini.Transcribe: generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("Gemini.Transcribe: nil response from model")
	}

	text := strings.TrimSpace(resp.Text())
	text = strings.Trim(text, "\"«»")
	if text == "" {
		return "", fmt.Errorf("Gemini.Transcribe: %w", ErrNoSpeech)
	}
	return text, nil
}

var _ Transcriber = (*Gemini)(nil)
