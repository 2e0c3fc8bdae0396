package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/gneuro/tgrelay/internal/provider"
)

const generatePath = "/v1beta/models/{model}:generateContent"

func newRestyClient(cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.parsedTimeout()).
		SetHeaders(map[string]string{
			"Content-Type":   "application/json",
			"x-goog-api-key": cfg.APIKey,
		})
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("model", p.config.Model).
		SetBody(p.buildRequest(req)).
		SetResult(&generateResponse{}).
		Post(generatePath)
	if err != nil {
		return provider.CompletionResponse{}, mapConnectionError(err)
	}
	if err := mapHTTPError(resp.StatusCode(), resp.Body()); err != nil {
		return provider.CompletionResponse{}, err
	}

	gr, ok := resp.Result().(*generateResponse)
	if !ok || gr == nil {
		return provider.CompletionResponse{}, fmt.Errorf("gemini: unexpected response body: %s", resp.String())
	}
	out, err := toCompletion(gr)
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	p.logger.Debug("completion finished",
		"model", p.config.Model,
		"finish_reason", string(out.FinishReason),
		"total_tokens", out.Usage.TotalTokens,
	)
	return out, nil
}

// buildRequest converts a provider request to the Gemini wire format,
// merging request-level overrides with config defaults.
func (p *Provider) buildRequest(req provider.CompletionRequest) generateRequest {
	gr := generateRequest{Contents: make([]content, 0, len(req.Messages))}
	for _, m := range req.Messages {
		gr.Contents = append(gr.Contents, content{
			Role:  toRole(m.Role),
			Parts: []part{{Text: m.Content}},
		})
	}
	if strings.TrimSpace(req.System) != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	gc := generationConfig{
		Temperature:     p.config.Temperature,
		TopP:            p.config.TopP,
		MaxOutputTokens: p.config.MaxOutputTokens,
	}
	if req.Temperature != nil {
		gc.Temperature = req.Temperature
	}
	if req.TopP != nil {
		gc.TopP = req.TopP
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = req.MaxTokens
	}
	if gc != (generationConfig{}) {
		gr.GenerationConfig = &gc
	}
	return gr
}

func toRole(r provider.MessageRole) string {
	if r == provider.MessageRoleAssistant {
		return "model"
	}
	return "user"
}

func toCompletion(gr *generateResponse) (provider.CompletionResponse, error) {
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return provider.CompletionResponse{}, fmt.Errorf("%w: prompt blocked (%s)", provider.ErrEmptyResponse, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("%w: no candidates", provider.ErrEmptyResponse)
	}

	cand := gr.Candidates[0]
	var b strings.Builder
	for _, pt := range cand.Content.Parts {
		b.WriteString(pt.Text)
	}
	if b.Len() == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("%w: finish reason %s", provider.ErrEmptyResponse, cand.FinishReason)
	}

	return provider.CompletionResponse{
		Content:      b.String(),
		FinishReason: toFinishReason(cand.FinishReason),
		Usage: provider.TokenUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func toFinishReason(s string) provider.FinishReason {
	switch s {
	case "STOP":
		return provider.FinishReasonStop
	case "MAX_TOKENS":
		return provider.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonOther
	}
}
