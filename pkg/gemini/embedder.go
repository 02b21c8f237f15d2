// Package gemini embeds job text with the Gemini embedding API.
package gemini

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/comp-pricer/internal/resilience"
)

// maxInputBytes keeps requests under the embedding model's token limit.
const maxInputBytes = 32000

// embedAPI is the part of *genai.Models the Embedder calls.
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder turns query text into a vector in the taxonomy index's space.
type Embedder struct {
	models embedAPI
	model  string
	guard  *resilience.Guard
}

// NewEmbedder creates an Embedder backed by the Gemini API.
func NewEmbedder(ctx context.Context, apiKey, model string, guard *resilience.Guard) (*Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &Embedder{models: client.Models, model: model, guard: guard}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, maxInputBytes)
	if text == "" {
		return nil, eris.New("gemini: empty embedding input")
	}

	return resilience.Call(ctx, e.guard, "embed", func(ctx context.Context) ([]float32, error) {
		res, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_QUERY",
		})
		if err != nil {
			return nil, classify(eris.Wrap(err, "gemini: embed content"))
		}
		if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
			return nil, eris.New("gemini: empty embedding result")
		}
		return res.Embeddings[0].Values, nil
	})
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(err, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && resilience.IsTransientHTTPStatus(apiErrPtr.Code) {
		return resilience.NewTransientError(err, apiErrPtr.Code)
	}
	return err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
