package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: `{"code":`},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: `"HR-001"}`},
	}}
	assert.Equal(t, `{"code":"HR-001"}`, resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestEstimateCost_Haiku(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
}

func TestEstimateCost_Sonnet(t *testing.T) {
	u := TokenUsage{InputTokens: 2000, OutputTokens: 500}
	assert.InDelta(t, 0.0135, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.00001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	u := TokenUsage{InputTokens: 1000, OutputTokens: 1000}
	assert.Equal(t, 0.0, u.EstimateCost("gpt-4"))
}

func TestLogCost_Fields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	TokenUsage{InputTokens: 100, OutputTokens: 20}.LogCost("claude-haiku-4-5-20251001", "arbiter")

	entries := logs.FilterMessage("cost attribution").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "arbiter", fields["phase"])
		assert.Equal(t, int64(100), fields["input_tokens"])
	}
}
