package council

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callerFunc func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)

func (f callerFunc) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return f(ctx, input, opts...)
}

type mockCallers struct {
	CallerFunc func(ctx context.Context, name string) (provider.Caller, error)
}

func (m *mockCallers) Caller(ctx context.Context, name string) (provider.Caller, error) {
	return m.CallerFunc(ctx, name)
}

// scripted answers questions with "<provider> answer", reviews with the
// provider's fixed score and syntheses with "synthesis by <provider>".
func scripted(scores map[string]string, down map[string]bool) (*mockCallers, *sync.Map) {
	var seen sync.Map
	return &mockCallers{CallerFunc: func(_ context.Context, name string) (provider.Caller, error) {
		if down[name] {
			return nil, errors.New(name + " unavailable")
		}
		return callerFunc(func(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
			o := model.GetCommonOptions(&model.Options{}, opts...)
			if o.Model != nil {
				seen.Store(name, *o.Model)
			}
			last := input[len(input)-1].Content
			switch {
			case strings.HasPrefix(last, "You are reviewing"):
				return schema.AssistantMessage(scores[name], nil), nil
			case strings.HasPrefix(last, "You are the Chairman"):
				return schema.AssistantMessage("synthesis by "+name, nil), nil
			default:
				return schema.AssistantMessage(name+" answer", nil), nil
			}
		}), nil
	}}, &seen
}

func TestDeliberatorRunFullCouncil(t *testing.T) {
	cfg := threeMembers()
	cfg.Members[0].Model = "gpt-test"
	m, _ := newTestManager(cfg)
	callers, seen := scripted(map[string]string{
		"openai":    "Accuracy: 9 Insight: 9 Completeness: 9",
		"anthropic": "Accuracy: 9 Insight: 9 Completeness: 9",
		"gemini":    "Accuracy: 9 Insight: 9 Completeness: 9",
	}, nil)
	d := NewDeliberator(m, callers, 0)

	result, err := d.Run(context.Background(), entities.CouncilQuery{QueryID: "q", UserQuery: "why?"})
	require.NoError(t, err)
	assert.Equal(t, "synthesis by anthropic", result.FinalResponse)
	assert.Len(t, result.IndividualResponses, 3)
	assert.Len(t, result.Rankings, 3)

	s, err := m.GetSession("session-q")
	require.NoError(t, err)
	assert.Equal(t, entities.StageCompleted, s.Stage)
	assert.Len(t, s.Reviews, 6)
	assert.Equal(t, "Synthesized by Beta from 3 responses", *s.ChairmanSummary)

	got, ok := seen.Load("openai")
	require.True(t, ok)
	assert.Equal(t, "gpt-test", got)
}

func TestDeliberatorPartialResponsesSkipReview(t *testing.T) {
	m, _ := newTestManager(threeMembers())
	callers, _ := scripted(nil, map[string]bool{"gemini": true})
	d := NewDeliberator(m, callers, 0)

	result, err := d.Run(context.Background(), entities.CouncilQuery{QueryID: "q", UserQuery: "why?"})
	require.NoError(t, err)
	assert.Len(t, result.IndividualResponses, 2)
	assert.Empty(t, result.Rankings)
	assert.Equal(t, 0.5, result.ConfidenceScore)

	s, err := m.GetSession("session-q")
	require.NoError(t, err)
	assert.Empty(t, s.Reviews)
}

func TestDeliberatorFallsBackToBestRanked(t *testing.T) {
	cfg := threeMembers()
	cfg.Members = []entities.CouncilMember{
		{ID: "A", Name: "Alpha", Provider: "openai"},
		{ID: "C", Name: "Gamma", Provider: "gemini"},
		{ID: "B", Name: "Beta", Provider: "anthropic", IsChairman: true},
	}
	m, _ := newTestManager(cfg)

	var chairCalls int
	var mu sync.Mutex
	callers := &mockCallers{CallerFunc: func(_ context.Context, name string) (provider.Caller, error) {
		return callerFunc(func(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
			last := input[len(input)-1].Content
			switch {
			case strings.HasPrefix(last, "You are the Chairman"):
				mu.Lock()
				chairCalls++
				mu.Unlock()
				return nil, errors.New("chairman overloaded")
			case strings.HasPrefix(last, "You are reviewing"):
				if strings.Contains(last, "gemini answer") {
					return schema.AssistantMessage("Accuracy: 10 Insight: 10 Completeness: 10", nil), nil
				}
				return schema.AssistantMessage("Accuracy: 2 Insight: 2 Completeness: 2", nil), nil
			default:
				return schema.AssistantMessage(name+" answer", nil), nil
			}
		}), nil
	}}
	d := NewDeliberator(m, callers, 0)

	result, err := d.Run(context.Background(), entities.CouncilQuery{QueryID: "q", UserQuery: "why?"})
	require.NoError(t, err)
	assert.Equal(t, 1, chairCalls)
	assert.Equal(t, 1, result.Rankings["C"])
	assert.Equal(t, "gemini answer", result.FinalResponse)

	s, err := m.GetSession("session-q")
	require.NoError(t, err)
	assert.Equal(t, "Top ranked response from Gamma", *s.ChairmanSummary)
}

func TestDeliberatorFailsWhenNobodyAnswers(t *testing.T) {
	m, _ := newTestManager(threeMembers())
	callers, _ := scripted(nil, map[string]bool{"openai": true, "anthropic": true, "gemini": true})
	d := NewDeliberator(m, callers, 0)

	_, err := d.Run(context.Background(), entities.CouncilQuery{QueryID: "q", UserQuery: "why?"})
	assert.True(t, errors.Is(err, entities.ErrAllProvidersFailed))

	s, err := m.GetSession("session-q")
	require.NoError(t, err)
	assert.Equal(t, entities.StageFailed, s.Stage)
	assert.Equal(t, "no council member responded", s.FailureReason)
}

func TestDeliberatorNeutralReviewOnReviewerFailure(t *testing.T) {
	m, _ := newTestManager(threeMembers())
	callers := &mockCallers{CallerFunc: func(_ context.Context, name string) (provider.Caller, error) {
		return callerFunc(func(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
			last := input[len(input)-1].Content
			if strings.HasPrefix(last, "You are reviewing") {
				return nil, errors.New("timeout")
			}
			return schema.AssistantMessage(name+" answer", nil), nil
		}), nil
	}}
	d := NewDeliberator(m, callers, 0)

	result, err := d.Run(context.Background(), entities.CouncilQuery{QueryID: "q", UserQuery: "why?"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, result.Rankings)

	s, err := m.GetSession("session-q")
	require.NoError(t, err)
	for _, r := range s.Reviews {
		assert.Equal(t, 15, r.Total())
	}
}
