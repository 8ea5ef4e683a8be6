package council

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/provider"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const DefaultMemberTimeout = 60 * time.Second

// Callers resolves a provider name to something that can generate text.
type Callers interface {
	Caller(ctx context.Context, name string) (provider.Caller, error)
}

// Deliberator drives a council session end to end: every member answers,
// members review each other, and the chairman writes the final answer.
type Deliberator struct {
	manager *Manager
	callers Callers
	timeout time.Duration
	now     func() time.Time
}

func NewDeliberator(manager *Manager, callers Callers, timeout time.Duration) *Deliberator {
	if timeout <= 0 {
		timeout = DefaultMemberTimeout
	}
	return &Deliberator{manager: manager, callers: callers, timeout: timeout, now: time.Now}
}

// Run deliberates query and returns the completed result. The session is
// failed when no member answers.
func (d *Deliberator) Run(ctx context.Context, query entities.CouncilQuery) (*entities.CouncilResult, error) {
	sessionID, err := d.manager.CreateSession(query)
	if err != nil {
		return nil, err
	}
	session, err := d.manager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	cfg := session.Config

	responses := d.collect(ctx, sessionID, cfg, session.Query)
	if len(responses) == 0 {
		if err := d.manager.Fail(sessionID, "no council member responded"); err != nil {
			klog.Errorf("failed to mark council session %s failed: %v", sessionID, err)
		}
		return nil, fmt.Errorf("council session %s: %w", sessionID, entities.ErrAllProvidersFailed)
	}

	if cfg.ReviewEnabled && len(cfg.Members) > 1 && len(responses) == len(cfg.Members) {
		if err := d.review(ctx, sessionID, cfg, responses); err != nil {
			return nil, d.abort(sessionID, err)
		}
	}

	final, summary, err := d.synthesize(ctx, sessionID, cfg)
	if err != nil {
		return nil, d.abort(sessionID, err)
	}
	return d.manager.SetFinalResponse(sessionID, final, summary)
}

func (d *Deliberator) abort(sessionID string, cause error) error {
	if err := d.manager.Fail(sessionID, cause.Error()); err != nil && !errors.Is(err, entities.ErrSessionTerminal) {
		klog.Errorf("failed to mark council session %s failed: %v", sessionID, err)
	}
	return cause
}

func (d *Deliberator) collect(ctx context.Context, sessionID string, cfg entities.CouncilConfig, query entities.CouncilQuery) []entities.LLMResponse {
	prompt := query.UserQuery
	if query.Context != "" {
		prompt = fmt.Sprintf("Context: %s\n\nQuestion: %s", query.Context, query.UserQuery)
	}

	var (
		mu        sync.Mutex
		responses []entities.LLMResponse
		g         errgroup.Group
	)
	for _, member := range cfg.Members {
		g.Go(func() error {
			start := d.now()
			system := fmt.Sprintf("You are %s, a member of the %s.", member.Name, cfg.Name)
			msg, err := d.ask(ctx, member, provider.Messages(system, nil, prompt))
			if err != nil {
				klog.Warningf("council member %s did not answer session %s: %v", member.ID, sessionID, err)
				return nil
			}
			resp := entities.LLMResponse{
				ProviderID:   member.ID,
				ProviderName: member.Name,
				Response:     msg.Content,
				TokensUsed:   provider.TokensOf(msg),
				LatencyMS:    d.now().Sub(start).Milliseconds(),
				Timestamp:    d.now(),
			}
			if err := d.manager.AddResponse(sessionID, resp); err != nil {
				klog.Errorf("failed to record response of %s for session %s: %v", member.ID, sessionID, err)
				return nil
			}
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(responses, func(i, j int) bool { return responses[i].ProviderID < responses[j].ProviderID })
	return responses
}

// review has every member score every other member's response. A review that
// cannot be obtained counts as neutral so that rankings still complete.
func (d *Deliberator) review(ctx context.Context, sessionID string, cfg entities.CouncilConfig, responses []entities.LLMResponse) error {
	var g errgroup.Group
	for _, reviewer := range cfg.Members {
		for _, resp := range responses {
			if resp.ProviderID == reviewer.ID {
				continue
			}
			g.Go(func() error {
				prompt, err := d.manager.ReviewPrompt(sessionID, resp, cfg.AnonymizeReviews)
				if err != nil {
					return err
				}
				text := ""
				msg, err := d.ask(ctx, reviewer, provider.Messages("", nil, prompt))
				if err != nil {
					klog.Warningf("council member %s could not review %s in session %s: %v", reviewer.ID, resp.ProviderID, sessionID, err)
				} else {
					text = msg.Content
				}
				return d.manager.AddReview(sessionID, ParseReview(reviewer.ID, resp.ProviderID, text))
			})
		}
	}
	return g.Wait()
}

// synthesize asks the chairman for the final answer, falling back to the
// best ranked response when the chairman is missing or silent.
func (d *Deliberator) synthesize(ctx context.Context, sessionID string, cfg entities.CouncilConfig) (string, string, error) {
	session, err := d.manager.GetSession(sessionID)
	if err != nil {
		return "", "", err
	}

	if chair, ok := cfg.ChairmanMember(); ok {
		msg, err := d.ask(ctx, chair, provider.Messages("", nil, BuildChairmanPrompt(session)))
		if err == nil && msg.Content != "" {
			summary := fmt.Sprintf("Synthesized by %s from %d responses", chair.Name, len(session.IndividualResponses))
			return msg.Content, summary, nil
		}
		klog.Warningf("chairman %s did not synthesize session %s: %v", chair.ID, sessionID, err)
	}

	best := bestResponse(session)
	summary := fmt.Sprintf("Top ranked response from %s", best.ProviderName)
	return best.Response, summary, nil
}

func bestResponse(s *entities.CouncilSession) entities.LLMResponse {
	best := s.IndividualResponses[0]
	bestRank := 0
	for _, r := range s.IndividualResponses {
		rank, ok := s.Rankings[r.ProviderID]
		if ok && (bestRank == 0 || rank < bestRank) {
			best, bestRank = r, rank
		}
	}
	return best
}

func (d *Deliberator) ask(ctx context.Context, member entities.CouncilMember, msgs []*schema.Message) (*schema.Message, error) {
	caller, err := d.callers.Caller(ctx, member.Provider)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	opts := []model.Option{}
	if member.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(member.MaxTokens))
	}
	if member.Temperature > 0 {
		opts = append(opts, model.WithTemperature(member.Temperature))
	}
	if member.Model != "" {
		opts = append(opts, model.WithModel(member.Model))
	}
	return caller.Generate(ctx, msgs, opts...)
}
