package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func reply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
	}
}

func TestGemini_Transcribe(t *testing.T) {
	var gotBlob *genai.Blob
	g := NewGemini(&mockGenerator{GenerateContentFunc: func(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		assert.Equal(t, "gemini-2.5-flash", model)
		gotBlob = contents[0].Parts[1].InlineData
		return reply("  «Заплатил Петрову 40000»\n"), nil
	}}, "gemini-2.5-flash")

	text, err := g.Transcribe(context.Background(), []byte{1, 2, 3}, "")
	require.NoError(t, err)
	assert.Equal(t, "Заплатил Петрову 40000", text)
	require.NotNil(t, gotBlob)
	assert.Equal(t, DefaultMIMEType, gotBlob.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, gotBlob.Data)
}

func TestGemini_Errors(t *testing.T) {
	empty := NewGemini(&mockGenerator{GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return reply(" "), nil
	}}, "m")
	_, err := empty.Transcribe(context.Background(), []byte{1}, "audio/mpeg")
	assert.True(t, errors.Is(err, ErrNoSpeech))

	_, err = empty.Transcribe(context.Background(), nil, "")
	assert.Error(t, err)

	failing := NewGemini(&mockGenerator{GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("quota exceeded")
	}}, "m")
	_, err = failing.Transcribe(context.Background(), []byte{1}, "")
	assert.ErrorContains(t, err, "quota exceeded")
}
