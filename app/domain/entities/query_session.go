package entities

import "time"

// CostPerToken is the flat USD estimate applied to generated tokens.
const CostPerToken = 0.0001

// ChatMessage is one turn of conversation context.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ModelResponse is the outcome of calling a single provider during fan-out.
type ModelResponse struct {
	Model           string `json:"model"`
	Provider        string `json:"provider"`
	Response        string `json:"response"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	LatencyMS       int64  `json:"latency_ms"`
	TokensGenerated *int   `json:"tokens_generated,omitempty"`
}

// Consensus is the synthesized answer across provider responses.
type Consensus struct {
	FinalResponse   string   `json:"final_response"`
	ConfidenceScore float64  `json:"confidence_score"`
	AgreementLevel  float64  `json:"agreement_level"`
	KeyPoints       []string `json:"key_points"`
	DissentingViews []string `json:"dissenting_views"`
	SynthesisMethod string   `json:"synthesis_method"`
}

// QuerySession records one fan-out query and its consensus.
type QuerySession struct {
	SessionID       string          `json:"session_id"`
	User            string          `json:"user"`
	UserQuery       string          `json:"user_query"`
	SystemPrompt    string          `json:"system_prompt,omitempty"`
	Context         []ChatMessage   `json:"context"`
	Responses       []ModelResponse `json:"responses"`
	Consensus       *Consensus      `json:"consensus,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	TotalTokensUsed int             `json:"total_tokens_used"`
	TotalCostUSD    float64         `json:"total_cost_usd"`
}

// TokenUsage is the usage block reported by OpenAI-compatible APIs.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *QuerySession) Clone() *QuerySession {
	c := *s
	c.Context = append([]ChatMessage(nil), s.Context...)
	c.Responses = make([]ModelResponse, len(s.Responses))
	for i, r := range s.Responses {
		if r.TokensGenerated != nil {
			v := *r.TokensGenerated
			r.TokensGenerated = &v
		}
		c.Responses[i] = r
	}
	if s.Consensus != nil {
		cons := *s.Consensus
		cons.KeyPoints = append([]string(nil), s.Consensus.KeyPoints...)
		cons.DissentingViews = append([]string(nil), s.Consensus.DissentingViews...)
		c.Consensus = &cons
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
