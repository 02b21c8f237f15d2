// Package arbiter asks a language model to pick the taxonomy entry that best
// fits a job query when vector similarity alone is inconclusive.
package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/comp-pricer/internal/model"
	"github.com/sells-group/comp-pricer/internal/resilience"
	"github.com/sells-group/comp-pricer/pkg/anthropic"
)

const systemPrompt = `You are a job taxonomy arbiter. Given a job posting and a short list of candidate taxonomy entries, choose the single entry that describes the same role. Seniority differences are acceptable; different job families are not. If no candidate describes the same role, reject all of them.

Reply with JSON only, no prose:
{"code": "<candidate code>", "rationale": "<one sentence>", "confidence": <0.0-1.0>}
or, to reject:
{"code": null, "rationale": "<one sentence>"}`

// Decision is the arbiter's answer. An empty Code is an explicit rejection.
type Decision struct {
	Code       string
	Rationale  string
	Confidence float64
}

// Rejected reports whether the arbiter declined every candidate.
func (d Decision) Rejected() bool { return d.Code == "" }

// Config holds the model settings for the arbiter.
type Config struct {
	Model          string
	MaxTokens      int64
	RequestsPerSec float64
}

// Arbiter chooses among taxonomy candidates with an Anthropic model.
type Arbiter struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
	guard   *resilience.Guard
}

// New creates an Arbiter. A non-positive RequestsPerSec disables limiting.
func New(client anthropic.Client, cfg Config, guard *resilience.Guard) *Arbiter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &Arbiter{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		guard:   guard,
	}
}

type reply struct {
	Code       *string  `json:"code"`
	Rationale  string   `json:"rationale"`
	Confidence *float64 `json:"confidence"`
}

// Choose asks the model to select one of candidates for q. Errors mean the
// arbiter was unavailable or answered unintelligibly; a rejection is a
// Decision with an empty Code.
func (a *Arbiter) Choose(ctx context.Context, q model.JobQuery, candidates []model.TaxonomyCandidate) (*Decision, error) {
	if len(candidates) == 0 {
		return &Decision{Rationale: "no candidates offered"}, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arbiter: rate limit wait")
	}

	prompt := buildPrompt(q, candidates)
	zap.L().Debug("arbiter prompt", zap.String("prompt", prompt))

	temp := 0.0
	resp, err := resilience.Call(ctx, a.guard, "choose", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.cfg.Model,
			MaxTokens:   a.cfg.MaxTokens,
			System:      systemPrompt,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "arbiter: create message")
	}
	resp.Usage.LogCost(a.cfg.Model, "arbiter")

	text := resp.Text()
	zap.L().Debug("arbiter response", zap.String("text", text))
	return parseDecision(text)
}

func buildPrompt(q model.JobQuery, candidates []model.TaxonomyCandidate) string {
	var b strings.Builder
	b.WriteString("Job posting\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(q.Title))
	if d := strings.TrimSpace(q.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if q.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", q.Location)
	}

	b.WriteString("\nCandidates\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. code=%s title=%q similarity=%.2f", i+1, c.Code, c.Title, c.Similarity)
		if c.Description != "" {
			fmt.Fprintf(&b, "\n   %s", c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func parseDecision(text string) (*Decision, error) {
	var r reply
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		return nil, eris.Wrap(err, "arbiter: parse reply")
	}

	d := &Decision{Rationale: strings.TrimSpace(r.Rationale)}
	if r.Code == nil || strings.TrimSpace(*r.Code) == "" {
		return d, nil
	}
	d.Code = strings.TrimSpace(*r.Code)

	// Models sometimes omit confidence on a clear pick.
	d.Confidence = 0.75
	if r.Confidence != nil {
		d.Confidence = clamp01(*r.Confidence)
	}
	return d, nil
}

// cleanJSON extracts a JSON object from text that may carry markdown fences
// or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
