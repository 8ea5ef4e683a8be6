package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/marketconnect/llm-council/app/domain/entities"
)

// Outcaller sends an HTTP request through the paced outcall queue.
type Outcaller interface {
	Push(ctx context.Context, r entities.OutcallRequest) entities.OutcallResponse
}

// HuggingFace calls a text-generation inference endpoint.
type HuggingFace struct {
	outcaller   Outcaller
	url         string
	apiKey      string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewHuggingFace builds a caller for the endpoint at url.
func NewHuggingFace(outcaller Outcaller, url, apiKey string, maxTokens int, temperature float32, timeout time.Duration) *HuggingFace {
	return &HuggingFace{
		outcaller:   outcaller,
		url:         url,
		apiKey:      apiKey,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float32 `json:"temperature"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// Generate flattens input into a single prompt and returns the generated text.
func (h *HuggingFace) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	maxTokens, temperature := h.maxTokens, h.temperature
	options := model.GetCommonOptions(&model.Options{MaxTokens: &maxTokens, Temperature: &temperature}, opts...)

	body, err := json.Marshal(hfRequest{
		Inputs: flatten(input),
		Parameters: hfParameters{
			MaxNewTokens: *options.MaxTokens,
			Temperature:  *options.Temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode huggingface request: %w", err)
	}

	resp := h.outcaller.Push(ctx, entities.OutcallRequest{
		Method:  http.MethodPost,
		URL:     h.url,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
		APIKey:  h.apiKey,
		Timeout: h.timeout,
	})
	if resp.Err != nil {
		return nil, fmt.Errorf("huggingface request failed: %w", resp.Err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("huggingface returned status %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))
	}

	var generations []hfGeneration
	if err := json.Unmarshal(resp.Body, &generations); err != nil {
		return nil, fmt.Errorf("failed to decode huggingface response: %w", err)
	}
	if len(generations) == 0 {
		return nil, fmt.Errorf("huggingface returned no generations")
	}

	text := generations[0].GeneratedText
	tokens := len(strings.Fields(text))
	msg := schema.AssistantMessage(text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: "stop",
		Usage:        &schema.TokenUsage{CompletionTokens: tokens, TotalTokens: tokens},
	}
	return msg, nil
}

func flatten(input []*schema.Message) string {
	if len(input) == 1 {
		return input[0].Content
	}
	var b strings.Builder
	for _, m := range input {
		if m == nil {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("assistant:")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
