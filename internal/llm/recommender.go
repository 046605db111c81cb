// Package llm provides a recommendation provider backed by an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// SourcePrefix prefixes the Source of every recommendation this provider returns.
const SourcePrefix = "llm:"

const systemPrompt = `You are a trade promotion management analyst for a consumer goods company.
Given one analytical insight about a customer account, suggest concrete next actions.
Reply with a JSON object of the form
{"recommendations":[{"action":"...","rationale":"...","score":0.0}]}
where score is your confidence between 0 and 1. Return at most %d recommendations.`

var _ roles.RecommendationProvider = (*Recommender)(nil)

// Recommender asks a chat completion model for recommendations.
type Recommender struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a Recommender. An API key is required unless BaseURL points at a
// self-hosted endpoint.
func New(cfg Config, logger *zap.Logger) (*Recommender, error) {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if strings.TrimSpace(cfg.APIKey) == "" && cfg.BaseURL == "" {
		return nil, errors.New("llm: api key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{api: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger}, nil
}

// Model returns the configured model name.
func (r *Recommender) Model() string {
	return r.cfg.Model
}

type completionOutput struct {
	Recommendations []struct {
		Action    string  `json:"action"`
		Rationale string  `json:"rationale"`
		Score     float64 `json:"score"`
	} `json:"recommendations"`
}

// Recommend implements roles.RecommendationProvider.
func (r *Recommender) Recommend(ctx context.Context, rc roles.RecommendationContext) ([]analytics.Recommendation, error) {
	limit := rc.Limit
	if limit <= 0 {
		limit = 3
	}

	prompt, err := userPrompt(rc)
	if err != nil {
		return nil, err
	}

	// The configured timeout bounds every call; an earlier caller deadline still wins.
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, limit)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: r.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Code: ErrCodeInvalidOutput, Message: "no completion choices"}
	}

	recs, err := parseRecommendations(resp.Choices[0].Message.Content, SourcePrefix+r.cfg.Model, limit)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("llm recommendations received",
		zap.String("tenant_id", rc.TenantID),
		zap.String("insight_type", rc.InsightType),
		zap.Int("count", len(recs)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return recs, nil
}

func userPrompt(rc roles.RecommendationContext) (string, error) {
	payload := map[string]any{
		"insight_type": rc.InsightType,
		"title":        rc.Title,
		"summary":      rc.Summary,
		"data":         rc.Data,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal recommendation context: %w", err)
	}
	return "Insight:\n" + string(b), nil
}

// parseRecommendations decodes the model output, tolerating a fenced code block.
func parseRecommendations(content, source string, limit int) ([]analytics.Recommendation, error) {
	out := strings.TrimSpace(content)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```JSON")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)

	var parsed completionOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, &ProviderError{Code: ErrCodeInvalidOutput, Message: "decode recommendations", Err: err}
	}

	recs := make([]analytics.Recommendation, 0, len(parsed.Recommendations))
	for _, p := range parsed.Recommendations {
		action := strings.TrimSpace(p.Action)
		if action == "" {
			continue
		}
		score := p.Score
		switch {
		case score < 0:
			score = 0
		case score > 1:
			score = 1
		}
		recs = append(recs, analytics.Recommendation{
			Action:    action,
			Rationale: strings.TrimSpace(p.Rationale),
			Score:     score,
			Source:    source,
		})
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}
