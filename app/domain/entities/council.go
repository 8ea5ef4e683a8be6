package entities

import "time"

// Stage is the position of a council session in its pipeline.
type Stage string

const (
	StagePending             Stage = "pending"
	StageCollectingResponses Stage = "collecting_responses"
	StageReviewingResponses  Stage = "reviewing_responses"
	StageGeneratingConsensus Stage = "generating_consensus"
	StageCompleted           Stage = "completed"
	StageFailed              Stage = "failed"
)

var stageOrder = map[Stage]int{
	StagePending:             0,
	StageCollectingResponses: 1,
	StageReviewingResponses:  2,
	StageGeneratingConsensus: 3,
	StageCompleted:           4,
}

// Ordinal returns the position of s in the linear pipeline, or -1 for failed
// and unknown stages.
func (s Stage) Ordinal() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// QueryPriority orders council queries.
type QueryPriority string

const (
	PriorityLow      QueryPriority = "low"
	PriorityNormal   QueryPriority = "normal"
	PriorityHigh     QueryPriority = "high"
	PriorityCritical QueryPriority = "critical"
)

// ParsePriority maps free text onto a priority, defaulting to normal.
func ParsePriority(s string) QueryPriority {
	switch QueryPriority(s) {
	case PriorityLow, PriorityHigh, PriorityCritical:
		return QueryPriority(s)
	default:
		return PriorityNormal
	}
}

// CouncilMember is one model seated on the council.
type CouncilMember struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Model       string  `json:"model" yaml:"model"`
	Provider    string  `json:"provider" yaml:"provider"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	IsChairman  bool    `json:"is_chairman" yaml:"is_chairman"`
}

// CouncilConfig describes who sits on the council and how it deliberates.
type CouncilConfig struct {
	CouncilID        string          `json:"council_id" yaml:"council_id"`
	Name             string          `json:"name" yaml:"name"`
	Members          []CouncilMember `json:"members" yaml:"members"`
	Chairman         string          `json:"chairman" yaml:"chairman"`
	ReviewEnabled    bool            `json:"review_enabled" yaml:"review_enabled"`
	AnonymizeReviews bool            `json:"anonymize_reviews" yaml:"anonymize_reviews"`
	MaxRounds        int             `json:"max_rounds" yaml:"max_rounds"`
}

// DefaultCouncilConfig returns the three-member council with claude in the chair.
func DefaultCouncilConfig() CouncilConfig {
	return CouncilConfig{
		CouncilID: "default",
		Name:      "Raven AI Council",
		Members: []CouncilMember{
			{ID: "gpt4", Name: "GPT-4", Model: "gpt-4-turbo", Provider: "openai", MaxTokens: 4096, Temperature: 0.7},
			{ID: "claude", Name: "Claude", Model: "claude-3-opus-20240229", Provider: "anthropic", MaxTokens: 4096, Temperature: 0.7, IsChairman: true},
			{ID: "gemini", Name: "Gemini", Model: "gemini-1.5-pro", Provider: "gemini", MaxTokens: 4096, Temperature: 0.7},
		},
		Chairman:         "claude",
		ReviewEnabled:    true,
		AnonymizeReviews: true,
		MaxRounds:        1,
	}
}

// ChairmanMember returns the member holding the chair, if any.
func (c CouncilConfig) ChairmanMember() (CouncilMember, bool) {
	for _, m := range c.Members {
		if m.ID == c.Chairman {
			return m, true
		}
	}
	for _, m := range c.Members {
		if m.IsChairman {
			return m, true
		}
	}
	return CouncilMember{}, false
}

// CouncilQuery is the question put to the council.
type CouncilQuery struct {
	QueryID     string        `json:"query_id"`
	UserQuery   string        `json:"user_query"`
	Context     string        `json:"context,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	Priority    QueryPriority `json:"priority"`
}

// LLMResponse is one member's answer. It is never modified after recording.
type LLMResponse struct {
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	Response     string    `json:"response"`
	TokensUsed   int       `json:"tokens_used"`
	LatencyMS    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// ResponseReview is one member's scoring of another member's response.
type ResponseReview struct {
	ReviewerID         string `json:"reviewer_id"`
	ReviewedResponseID string `json:"reviewed_response_id"`
	AccuracyScore      int    `json:"accuracy_score"`
	InsightScore       int    `json:"insight_score"`
	CompletenessScore  int    `json:"completeness_score"`
	OverallRank        int    `json:"overall_rank"`
	Feedback           string `json:"feedback"`
}

// Total is the sum of the three scores.
func (r ResponseReview) Total() int {
	return r.AccuracyScore + r.InsightScore + r.CompletenessScore
}

// CouncilSession tracks one query through the council pipeline.
type CouncilSession struct {
	SessionID           string           `json:"session_id"`
	Config              CouncilConfig    `json:"config"`
	Query               CouncilQuery     `json:"council_query"`
	Stage               Stage            `json:"stage"`
	FailureReason       string           `json:"failure_reason,omitempty"`
	IndividualResponses []LLMResponse    `json:"individual_responses"`
	Reviews             []ResponseReview `json:"reviews"`
	Rankings            map[string]int   `json:"rankings"`
	FinalResponse       *string          `json:"final_response,omitempty"`
	ChairmanSummary     *string          `json:"chairman_summary,omitempty"`
	TotalTokens         int              `json:"total_tokens"`
	TotalLatencyMS      int64            `json:"total_latency_ms"`
	CreatedAt           time.Time        `json:"created_at"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *CouncilSession) Clone() *CouncilSession {
	c := *s
	c.Config.Members = append([]CouncilMember(nil), s.Config.Members...)
	c.IndividualResponses = append([]LLMResponse(nil), s.IndividualResponses...)
	c.Reviews = append([]ResponseReview(nil), s.Reviews...)
	c.Rankings = make(map[string]int, len(s.Rankings))
	for k, v := range s.Rankings {
		c.Rankings[k] = v
	}
	if s.FinalResponse != nil {
		v := *s.FinalResponse
		c.FinalResponse = &v
	}
	if s.ChairmanSummary != nil {
		v := *s.ChairmanSummary
		c.ChairmanSummary = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// CouncilResult is the terminal snapshot returned when a session completes.
type CouncilResult struct {
	SessionID           string         `json:"session_id"`
	Query               string         `json:"user_query"`
	FinalResponse       string         `json:"final_response"`
	IndividualResponses []LLMResponse  `json:"individual_responses"`
	Rankings            map[string]int `json:"rankings"`
	ConfidenceScore     float64        `json:"confidence_score"`
	DissentNotes        *string        `json:"dissent_notes,omitempty"`
	ProcessingTimeMS    int64          `json:"processing_time_ms"`
}
