package ask_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/ask"
	"github.com/marketconnect/llm-council/app/internal/metrics"
	"github.com/marketconnect/llm-council/app/internal/provider"
	"github.com/marketconnect/llm-council/app/internal/repository"
	"github.com/marketconnect/llm-council/app/internal/resilience"
	"github.com/marketconnect/llm-council/app/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProviders struct {
	EnabledFunc func(ctx context.Context) ([]*entities.Provider, error)

	mu       sync.Mutex
	recorded map[string][2]int
}

func (m *mockProviders) Enabled(ctx context.Context) ([]*entities.Provider, error) {
	if m.EnabledFunc != nil {
		return m.EnabledFunc(ctx)
	}
	return nil, errors.New("Enabled not implemented")
}

func (m *mockProviders) RecordRequest(_ context.Context, name string, failed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded == nil {
		m.recorded = make(map[string][2]int)
	}
	c := m.recorded[name]
	c[0]++
	if failed {
		c[1]++
	}
	m.recorded[name] = c
	return nil
}

type callerFunc func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)

func (f callerFunc) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return f(ctx, input, opts...)
}

type mockFactory struct {
	BuildFunc func(ctx context.Context, p *entities.Provider) (provider.Caller, error)
}

func (m *mockFactory) Build(ctx context.Context, p *entities.Provider) (provider.Caller, error) {
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, p)
	}
	return nil, errors.New("Build not implemented")
}

func providers(names ...string) []*entities.Provider {
	out := make([]*entities.Provider, 0, len(names))
	for _, n := range names {
		out = append(out, &entities.Provider{Name: n, Kind: entities.KindOpenAI, Model: n + "-model", APIKey: "k", Enabled: true})
	}
	return out
}

// answers maps provider name to a reply; missing names fail.
func answers(replies map[string]string, calls *sync.Map) *mockFactory {
	return &mockFactory{BuildFunc: func(_ context.Context, p *entities.Provider) (provider.Caller, error) {
		return callerFunc(func(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
			if calls != nil {
				calls.Store(p.Name, input)
			}
			text, ok := replies[p.Name]
			if !ok {
				return nil, errors.New("upstream 500")
			}
			return schema.AssistantMessage(text, nil), nil
		}), nil
	}}
}

type fixture struct {
	svc       *ask.Service
	providers *mockProviders
	breakers  *resilience.Breakers
	sessions  *session.SessionManager
}

func newFixture(t *testing.T, enabled []*entities.Provider, factory ask.CallerFactory, limit int) *fixture {
	t.Helper()
	f := &fixture{
		providers: &mockProviders{EnabledFunc: func(context.Context) ([]*entities.Provider, error) { return enabled, nil }},
		breakers:  resilience.NewBreakers(2, time.Minute),
		sessions:  session.NewSessionManager(repository.NewMemoryRepository()),
	}
	f.svc = ask.NewService(ask.Deps{
		Providers:   f.providers,
		Factory:     factory,
		Sessions:    f.sessions,
		Limiter:     resilience.NewRateLimiter(limit, time.Minute, 0),
		Breakers:    f.breakers,
		Collector:   metrics.NewCollector(nil),
		CallTimeout: time.Second,
	})
	return f
}

func TestQueryAICouncil_NoProvidersConfigured(t *testing.T) {
	f := newFixture(t, nil, &mockFactory{}, 20)

	_, err := f.svc.QueryAICouncil(context.Background(), "alice", "hello?", "", nil)
	assert.ErrorIs(t, err, entities.ErrNoProvidersConfigured)
	assert.NotErrorIs(t, err, entities.ErrAllProvidersFailed)
}

func TestQueryAICouncil_AllProvidersFailed(t *testing.T) {
	f := newFixture(t, providers("openai", "gemini"), answers(nil, nil), 20)

	_, err := f.svc.QueryAICouncil(context.Background(), "alice", "hello?", "", nil)
	assert.ErrorIs(t, err, entities.ErrAllProvidersFailed)
	assert.NotErrorIs(t, err, entities.ErrNoProvidersConfigured)

	snap := f.svc.Metrics()
	assert.Equal(t, uint64(2), snap.FailedRequests)
	assert.Equal(t, [2]int{1, 1}, f.providers.recorded["openai"])
}

func TestQueryAICouncil_SingleSuccess(t *testing.T) {
	f := newFixture(t, providers("openai", "gemini"), answers(map[string]string{"gemini": "X"}, nil), 20)

	sess, err := f.svc.QueryAICouncil(context.Background(), "alice", "hello?", "", nil)
	require.NoError(t, err)

	require.NotNil(t, sess.Consensus)
	assert.Equal(t, "X", sess.Consensus.FinalResponse)
	assert.Equal(t, 0.7, sess.Consensus.ConfidenceScore)
	assert.Equal(t, 1.0, sess.Consensus.AgreementLevel)

	require.Len(t, sess.Responses, 2)
	assert.Equal(t, "openai", sess.Responses[0].Provider)
	assert.False(t, sess.Responses[0].Success)
	assert.Equal(t, "upstream 500", sess.Responses[0].Error)
	assert.True(t, sess.Responses[1].Success)

	assert.Equal(t, 1, sess.TotalTokensUsed)
	assert.InDelta(t, 0.0001, sess.TotalCostUSD, 1e-12)
	assert.NotNil(t, sess.CompletedAt)

	stored, err := f.svc.GetSession("alice", sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.UserQuery, stored.UserQuery)

	_, err = f.svc.GetSession("mallory", sess.SessionID)
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)
}

func TestQueryAICouncil_PassesPromptAndContext(t *testing.T) {
	var calls sync.Map
	f := newFixture(t, providers("openai"), answers(map[string]string{"openai": "ok"}, &calls), 20)

	history := []entities.ChatMessage{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}}
	_, err := f.svc.QueryAICouncil(context.Background(), "alice", "now?", "be nice", history)
	require.NoError(t, err)

	v, ok := calls.Load("openai")
	require.True(t, ok)
	msgs := v.([]*schema.Message)
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "be nice", msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Equal(t, "now?", msgs[3].Content)
}

func TestQueryAICouncil_RateLimited(t *testing.T) {
	f := newFixture(t, providers("openai"), answers(map[string]string{"openai": "ok"}, nil), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.QueryAICouncil(ctx, "alice", "q", "", nil)
		require.NoError(t, err)
	}
	_, err := f.svc.QueryAICouncil(ctx, "alice", "q", "", nil)
	assert.ErrorIs(t, err, entities.ErrRateLimited)

	_, err = f.svc.QueryAICouncil(ctx, "bob", "q", "", nil)
	assert.NoError(t, err)
}

func TestQueryAICouncil_SkipsOpenBreaker(t *testing.T) {
	var calls sync.Map
	f := newFixture(t, providers("openai", "gemini"), answers(map[string]string{"openai": "a", "gemini": "b"}, &calls), 20)
	f.breakers.RecordFailure("gemini")
	f.breakers.RecordFailure("gemini")

	sess, err := f.svc.QueryAICouncil(context.Background(), "alice", "q", "", nil)
	require.NoError(t, err)

	_, called := calls.Load("gemini")
	assert.False(t, called)
	assert.Equal(t, "circuit breaker open", sess.Responses[1].Error)
	assert.Equal(t, "a", sess.Consensus.FinalResponse)
}

func TestQueryAICouncil_EmptyQuery(t *testing.T) {
	f := newFixture(t, providers("openai"), answers(nil, nil), 20)
	_, err := f.svc.QueryAICouncil(context.Background(), "alice", "  ", "", nil)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestQueryAICouncil_UsesResponseCache(t *testing.T) {
	var n int
	var mu sync.Mutex
	factory := &mockFactory{BuildFunc: func(context.Context, *entities.Provider) (provider.Caller, error) {
		return callerFunc(func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
			mu.Lock()
			n++
			mu.Unlock()
			return schema.AssistantMessage("cached answer", nil), nil
		}), nil
	}}
	enabled := providers("openai")
	svc := ask.NewService(ask.Deps{
		Providers: &mockProviders{EnabledFunc: func(context.Context) ([]*entities.Provider, error) { return enabled, nil }},
		Factory:   factory,
		Sessions:  session.NewSessionManager(repository.NewMemoryRepository()),
		Limiter:   resilience.NewRateLimiter(20, time.Minute, 0),
		Breakers:  resilience.NewBreakers(0, 0),
		Cache:     resilience.NewResponseCache(10, time.Minute),
	})

	for i := 0; i < 3; i++ {
		sess, err := svc.QueryAICouncil(context.Background(), "alice", "same question", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "cached answer", sess.Consensus.FinalResponse)
	}
	assert.Equal(t, 1, n)
}

func TestChat_UsesAndStoresHistory(t *testing.T) {
	var calls sync.Map
	f := newFixture(t, providers("openai"), answers(map[string]string{"openai": "pong"}, &calls), 20)
	ctx := context.Background()

	reply, err := f.svc.Chat(ctx, "alice", "agent-1", "ping", "")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply.Response)

	_, err = f.svc.Chat(ctx, "alice", "agent-1", "ping again", "")
	require.NoError(t, err)

	v, _ := calls.Load("openai")
	msgs := v.([]*schema.Message)
	require.Len(t, msgs, 3)
	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, "pong", msgs[1].Content)
	assert.Equal(t, "ping again", msgs[2].Content)

	history, err := f.sessions.History("alice", "agent-1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChat_RejectsAnonymous(t *testing.T) {
	var calls sync.Map
	f := newFixture(t, providers("openai"), answers(map[string]string{"openai": "pong"}, &calls), 20)

	for _, principal := range []string{"", " ", entities.AnonymousPrincipal} {
		_, err := f.svc.Chat(context.Background(), principal, "agent-1", "my secret is 1234", "")
		assert.ErrorIs(t, err, entities.ErrAnonymous, "principal %q", principal)
	}

	_, called := calls.Load("openai")
	assert.False(t, called)
	history, err := f.sessions.History(entities.AnonymousPrincipal, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestQueryAICouncil_CancelledCallerDoesNotBlameProvider(t *testing.T) {
	blocking := &mockFactory{BuildFunc: func(context.Context, *entities.Provider) (provider.Caller, error) {
		return callerFunc(func(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	}}
	f := newFixture(t, providers("openai"), blocking, 20)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.svc.QueryAICouncil(ctx, "alice", "q", "", nil)
		assert.ErrorIs(t, err, entities.ErrAllProvidersFailed)
	}

	assert.False(t, f.breakers.IsOpen("openai"))
	assert.Zero(t, f.breakers.State("openai").Failures)
	assert.Empty(t, f.providers.recorded)
	assert.Empty(t, f.svc.Metrics().ProviderStats)
	assert.Equal(t, metrics.StatusHealthy, f.svc.Health().Status)
}

func TestChat_FailureStoresNothing(t *testing.T) {
	f := newFixture(t, providers("openai"), answers(nil, nil), 20)

	_, err := f.svc.Chat(context.Background(), "alice", "agent-1", "ping", "")
	assert.ErrorIs(t, err, entities.ErrAllProvidersFailed)

	history, err := f.sessions.History("alice", "agent-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUserSessionsAndHealth(t *testing.T) {
	f := newFixture(t, providers("openai"), answers(map[string]string{"openai": "ok"}, nil), 20)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.QueryAICouncil(ctx, "alice", "q", "", nil)
		require.NoError(t, err)
	}
	sessions, err := f.svc.UserSessions("alice", 2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	health := f.svc.Health()
	assert.Equal(t, metrics.StatusHealthy, health.Status)
	assert.Equal(t, metrics.StatusHealthy, health.Providers["openai"].Status)
}
