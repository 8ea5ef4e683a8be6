// Package ask fans a query out to every configured provider and merges the
// answers into one consensus.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/consensus"
	"github.com/marketconnect/llm-council/app/internal/metrics"
	"github.com/marketconnect/llm-council/app/internal/provider"
	"github.com/marketconnect/llm-council/app/internal/resilience"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const DefaultCallTimeout = 30 * time.Second

// Providers lists callable providers and records their usage.
type Providers interface {
	Enabled(ctx context.Context) ([]*entities.Provider, error)
	RecordRequest(ctx context.Context, name string, failed bool) error
}

// CallerFactory builds a caller for a provider row.
type CallerFactory interface {
	Build(ctx context.Context, p *entities.Provider) (provider.Caller, error)
}

// Sessions persists query sessions and chat history.
type Sessions interface {
	GetSession(sessionID string) (*entities.QuerySession, error)
	SaveSession(session *entities.QuerySession) error
	UserSessions(user string, limit int) ([]*entities.QuerySession, error)
	RecordExchange(principal, agentID string, user, assistant entities.ChatMessage) error
	History(principal, agentID string) ([]entities.ChatMessage, error)
}

// Limiter admits requests per caller.
type Limiter interface {
	Allow(caller string) bool
}

// Breakers tracks provider health.
type Breakers interface {
	IsOpen(provider string) bool
	RecordSuccess(provider string)
	RecordFailure(provider string)
}

// Service answers queries by asking every configured provider.
type Service struct {
	providers   Providers
	factory     CallerFactory
	sessions    Sessions
	limiter     Limiter
	breakers    Breakers
	collector   *metrics.Collector
	cache       *resilience.ResponseCache
	callTimeout time.Duration
	now         func() time.Time
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Providers   Providers
	Factory     CallerFactory
	Sessions    Sessions
	Limiter     Limiter
	Breakers    Breakers
	Collector   *metrics.Collector
	Cache       *resilience.ResponseCache
	CallTimeout time.Duration
}

// NewService wires a Service. A nil Cache disables response caching.
func NewService(d Deps) *Service {
	if d.CallTimeout <= 0 {
		d.CallTimeout = DefaultCallTimeout
	}
	if d.Collector == nil {
		d.Collector = metrics.NewCollector(nil)
	}
	return &Service{
		providers:   d.Providers,
		factory:     d.Factory,
		sessions:    d.Sessions,
		limiter:     d.Limiter,
		breakers:    d.Breakers,
		collector:   d.Collector,
		cache:       d.Cache,
		callTimeout: d.CallTimeout,
		now:         time.Now,
	}
}

// QueryAICouncil asks every enabled provider, merges the successful answers
// and stores the resulting session.
func (s *Service) QueryAICouncil(ctx context.Context, principal, query, systemPrompt string, history []entities.ChatMessage) (*entities.QuerySession, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", entities.ErrInvalidInput)
	}
	if !s.limiter.Allow(principal) {
		return nil, entities.ErrRateLimited
	}

	providers, err := s.providers.Enabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, entities.ErrNoProvidersConfigured
	}

	sess := &entities.QuerySession{
		SessionID:    uuid.NewString(),
		User:         principal,
		UserQuery:    query,
		SystemPrompt: systemPrompt,
		Context:      append([]entities.ChatMessage{}, history...),
		CreatedAt:    s.now(),
	}
	klog.V(4).Infof("query session %s: asking %d providers for %s", sess.SessionID, len(providers), principal)

	sess.Responses = s.fanOut(ctx, providers, query, systemPrompt, history)

	var failures []string
	for _, r := range sess.Responses {
		if r.Success {
			if r.TokensGenerated != nil {
				sess.TotalTokensUsed += *r.TokensGenerated
			}
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", r.Provider, r.Error))
	}
	if len(failures) == len(sess.Responses) {
		klog.Warningf("query session %s: every provider failed: %s", sess.SessionID, strings.Join(failures, "; "))
		return nil, fmt.Errorf("%w: %s", entities.ErrAllProvidersFailed, strings.Join(failures, "; "))
	}

	c := consensus.Generate(sess.Responses)
	completedAt := s.now()
	sess.Consensus = &c
	sess.CompletedAt = &completedAt
	sess.TotalCostUSD = float64(sess.TotalTokensUsed) * entities.CostPerToken

	if err := s.sessions.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to save query session: %w", err)
	}
	s.collector.RecordSession()
	klog.V(4).Infof("query session %s: %d/%d providers answered, confidence=%.2f",
		sess.SessionID, len(sess.Responses)-len(failures), len(sess.Responses), c.ConfidenceScore)
	return sess, nil
}

func (s *Service) fanOut(ctx context.Context, providers []*entities.Provider, query, systemPrompt string, history []entities.ChatMessage) []entities.ModelResponse {
	responses := make([]entities.ModelResponse, len(providers))
	messages := provider.Messages(systemPrompt, toSchema(history), query)
	digest := historyDigest(history)

	var g errgroup.Group
	for i, p := range providers {
		if s.breakers.IsOpen(p.Name) {
			klog.V(4).Infof("skipping provider %s: circuit breaker open", p.Name)
			responses[i] = entities.ModelResponse{Model: p.Model, Provider: p.Name, Error: "circuit breaker open"}
			continue
		}
		g.Go(func() error {
			responses[i] = s.call(ctx, p, messages, resilience.CacheKey(p.Name, p.Model, systemPrompt, query, digest))
			return nil
		})
	}
	_ = g.Wait()
	return responses
}

func (s *Service) call(ctx context.Context, p *entities.Provider, messages []*schema.Message, cacheKey string) entities.ModelResponse {
	resp := entities.ModelResponse{Model: p.Model, Provider: p.Name}

	if s.cache != nil {
		if text, ok := s.cache.Get(cacheKey); ok {
			tokens := len(strings.Fields(text))
			resp.Response, resp.Success, resp.TokensGenerated = text, true, &tokens
			klog.V(6).Infof("provider %s answered from cache", p.Name)
			return resp
		}
	}

	start := s.now()
	msg, err := s.generate(ctx, p, messages)
	resp.LatencyMS = s.now().Sub(start).Milliseconds()

	if err != nil {
		resp.Error = err.Error()
		if ctx.Err() != nil {
			// The caller went away; the provider is not to blame.
			klog.V(4).Infof("provider %s call abandoned after %dms: %v", p.Name, resp.LatencyMS, ctx.Err())
			return resp
		}
		s.breakers.RecordFailure(p.Name)
		s.collector.RecordFailure(p.Name, resp.Error)
		if rerr := s.providers.RecordRequest(ctx, p.Name, true); rerr != nil {
			klog.Errorf("failed to record request for %s: %v", p.Name, rerr)
		}
		klog.V(4).Infof("provider %s failed after %dms: %v", p.Name, resp.LatencyMS, err)
		return resp
	}

	tokens := provider.TokensOf(msg)
	resp.Response, resp.Success, resp.TokensGenerated = msg.Content, true, &tokens
	s.breakers.RecordSuccess(p.Name)
	s.collector.RecordSuccess(p.Name, time.Duration(resp.LatencyMS)*time.Millisecond, tokens)
	if rerr := s.providers.RecordRequest(ctx, p.Name, false); rerr != nil {
		klog.Errorf("failed to record request for %s: %v", p.Name, rerr)
	}
	if s.cache != nil {
		s.cache.Set(cacheKey, msg.Content)
	}
	return resp
}

func (s *Service) generate(ctx context.Context, p *entities.Provider, messages []*schema.Message) (*schema.Message, error) {
	caller, err := s.factory.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	msg, err := caller.Generate(callCtx, messages)
	if err != nil {
		return nil, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, errors.New("empty response")
	}
	return msg, nil
}

// ChatReply is the answer to one chat turn.
type ChatReply struct {
	SessionID  string  `json:"session_id"`
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
}

// Chat answers message using the agent's recent history as context and
// appends the exchange to that history. History is kept per principal, so
// anonymous callers cannot chat.
func (s *Service) Chat(ctx context.Context, principal, agentID, message, systemPrompt string) (*ChatReply, error) {
	if entities.IsAnonymous(principal) {
		return nil, entities.ErrAnonymous
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("agent id is empty: %w", entities.ErrInvalidInput)
	}
	history, err := s.sessions.History(principal, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	asked := s.now()
	sess, err := s.QueryAICouncil(ctx, principal, message, systemPrompt, history)
	if err != nil {
		return nil, err
	}

	reply := sess.Consensus.FinalResponse
	err = s.sessions.RecordExchange(principal, agentID,
		entities.ChatMessage{Role: string(schema.User), Content: message, Timestamp: asked},
		entities.ChatMessage{Role: string(schema.Assistant), Content: reply, Timestamp: s.now()},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store chat history: %w", err)
	}
	return &ChatReply{SessionID: sess.SessionID, Response: reply, Confidence: sess.Consensus.ConfidenceScore}, nil
}

// GetSession returns a stored query session. Sessions are only visible to
// the principal that created them.
func (s *Service) GetSession(principal, sessionID string) (*entities.QuerySession, error) {
	sess, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.User != principal {
		return nil, entities.ErrSessionNotFound
	}
	return sess, nil
}

// UserSessions returns the caller's sessions, newest first.
func (s *Service) UserSessions(principal string, limit int) ([]*entities.QuerySession, error) {
	return s.sessions.UserSessions(principal, limit)
}

// Health reports provider health.
func (s *Service) Health() metrics.HealthReport {
	return s.collector.Health(s.breakers)
}

// Metrics returns the accumulated provider statistics.
func (s *Service) Metrics() metrics.Snapshot {
	return s.collector.Snapshot()
}

func toSchema(history []entities.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		role := schema.RoleType(m.Role)
		switch role {
		case schema.System, schema.User, schema.Assistant:
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}

func historyDigest(history []entities.ChatMessage) string {
	parts := make([]string, 0, len(history))
	for _, m := range history {
		parts = append(parts, m.Role+":"+m.Content)
	}
	return resilience.CacheKey(parts...)
}
