package council

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// SessionStore persists council sessions.
type SessionStore interface {
	GetCouncilSession(sessionID string) (*entities.CouncilSession, error)
	SaveCouncilSession(session *entities.CouncilSession) error
	ListCouncilSessions() ([]*entities.CouncilSession, error)
}

// Manager owns council sessions and moves them through the pipeline.
type Manager struct {
	config entities.CouncilConfig
	store  SessionStore
	stages *StageMachine
	now    func() time.Time
	mu     sync.Mutex
}

// NewManager creates a Manager that snapshots cfg into every new session.
func NewManager(cfg entities.CouncilConfig, store SessionStore) *Manager {
	return &Manager{
		config: cfg,
		store:  store,
		stages: NewStageMachine(),
		now:    time.Now,
	}
}

// Config returns a copy of the council configuration.
func (m *Manager) Config() entities.CouncilConfig {
	cfg := m.config
	cfg.Members = append([]entities.CouncilMember(nil), m.config.Members...)
	return cfg
}

// CreateSession opens a pending session for query and returns its id.
func (m *Manager) CreateSession(query entities.CouncilQuery) (string, error) {
	if query.QueryID == "" {
		query.QueryID = uuid.NewString()
	}
	if query.RequestedAt.IsZero() {
		query.RequestedAt = m.now()
	}
	if query.Priority == "" {
		query.Priority = entities.PriorityNormal
	}

	session := &entities.CouncilSession{
		SessionID:           "session-" + query.QueryID,
		Config:              m.Config(),
		Query:               query,
		Stage:               entities.StagePending,
		IndividualResponses: []entities.LLMResponse{},
		Reviews:             []entities.ResponseReview{},
		Rankings:            map[string]int{},
		CreatedAt:           m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SaveCouncilSession(session); err != nil {
		return "", fmt.Errorf("failed to save council session: %w", err)
	}
	klog.V(4).Infof("council session created: id=%s, members=%d", session.SessionID, len(session.Config.Members))
	return session.SessionID, nil
}

// AddResponse records one member's answer.
func (m *Manager) AddResponse(sessionID string, response entities.LLMResponse) error {
	if response.Timestamp.IsZero() {
		response.Timestamp = m.now()
	}
	return m.update(sessionID, func(s *entities.CouncilSession) error {
		target := entities.StageReviewingResponses
		if len(s.IndividualResponses)+1 < len(s.Config.Members) {
			target = entities.StageCollectingResponses
		}
		if err := m.stages.Advance(s, target); err != nil {
			return err
		}
		s.IndividualResponses = append(s.IndividualResponses, response)
		s.TotalTokens += response.TokensUsed
		s.TotalLatencyMS += response.LatencyMS
		return nil
	})
}

// AddReview records one peer review. Once every member has reviewed every
// other member, rankings are computed and the session moves on to consensus.
func (m *Manager) AddReview(sessionID string, review entities.ResponseReview) error {
	if err := ValidateReview(review); err != nil {
		return err
	}
	return m.update(sessionID, func(s *entities.CouncilSession) error {
		if s.Stage.IsTerminal() {
			return fmt.Errorf("session %s is %s: %w", s.SessionID, s.Stage, entities.ErrSessionTerminal)
		}
		s.Reviews = append(s.Reviews, review)

		n := len(s.Config.Members)
		expected := 0
		if n > 1 {
			expected = n * (n - 1)
		}
		if len(s.Reviews) < expected {
			return nil
		}
		s.Rankings = CalculateRankings(s.Reviews)
		return m.stages.Advance(s, entities.StageGeneratingConsensus)
	})
}

// SetFinalResponse completes the session with the chairman's synthesis.
func (m *Manager) SetFinalResponse(sessionID, response, summary string) (*entities.CouncilResult, error) {
	var result *entities.CouncilResult
	err := m.update(sessionID, func(s *entities.CouncilSession) error {
		confidence := CalculateConfidence(s)
		if err := m.stages.Advance(s, entities.StageCompleted); err != nil {
			return err
		}
		completedAt := m.now()
		s.FinalResponse = &response
		s.ChairmanSummary = &summary
		s.CompletedAt = &completedAt

		result = &entities.CouncilResult{
			SessionID:           s.SessionID,
			Query:               s.Query.UserQuery,
			FinalResponse:       response,
			IndividualResponses: append([]entities.LLMResponse(nil), s.IndividualResponses...),
			Rankings:            copyRankings(s.Rankings),
			ConfidenceScore:     confidence,
			DissentNotes:        dissentNotes(confidence, len(s.Rankings)),
			ProcessingTimeMS:    s.TotalLatencyMS,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	klog.V(4).Infof("council session completed: id=%s, confidence=%.2f", sessionID, result.ConfidenceScore)
	return result, nil
}

// Fail marks a session failed with reason.
func (m *Manager) Fail(sessionID, reason string) error {
	err := m.update(sessionID, func(s *entities.CouncilSession) error {
		if err := m.stages.Advance(s, entities.StageFailed); err != nil {
			return err
		}
		completedAt := m.now()
		s.FailureReason = reason
		s.CompletedAt = &completedAt
		return nil
	})
	if err == nil {
		klog.Warningf("council session failed: id=%s, reason=%s", sessionID, reason)
	}
	return err
}

// GetSession returns a copy of the session.
func (m *Manager) GetSession(sessionID string) (*entities.CouncilSession, error) {
	return m.store.GetCouncilSession(sessionID)
}

// ListSessions returns every session, newest first.
func (m *Manager) ListSessions() ([]*entities.CouncilSession, error) {
	sessions, err := m.store.ListCouncilSessions()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// ReapStale fails every unfinished session created before now-olderThan and
// returns how many were reaped.
func (m *Manager) ReapStale(olderThan time.Duration) (int, error) {
	sessions, err := m.store.ListCouncilSessions()
	if err != nil {
		return 0, fmt.Errorf("failed to list council sessions: %w", err)
	}
	cutoff := m.now().Add(-olderThan)
	reaped := 0
	for _, s := range sessions {
		if s.Stage.IsTerminal() || !s.CreatedAt.Before(cutoff) {
			continue
		}
		reason := fmt.Sprintf("timed out in stage %s", s.Stage)
		if err := m.Fail(s.SessionID, reason); err != nil {
			klog.Errorf("failed to reap council session %s: %v", s.SessionID, err)
			continue
		}
		reaped++
	}
	return reaped, nil
}

// ChairmanPrompt asks the chairman to synthesize the collected responses.
func (m *Manager) ChairmanPrompt(sessionID string) (string, error) {
	s, err := m.store.GetCouncilSession(sessionID)
	if err != nil {
		return "", err
	}
	return BuildChairmanPrompt(s), nil
}

// ReviewPrompt asks a member to score response.
func (m *Manager) ReviewPrompt(sessionID string, response entities.LLMResponse, anonymize bool) (string, error) {
	s, err := m.store.GetCouncilSession(sessionID)
	if err != nil {
		return "", err
	}
	return BuildReviewPrompt(s.Query.UserQuery, response, anonymize), nil
}

func (m *Manager) update(sessionID string, fn func(*entities.CouncilSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.GetCouncilSession(sessionID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := m.store.SaveCouncilSession(s); err != nil {
		return fmt.Errorf("failed to save council session: %w", err)
	}
	return nil
}

// ValidateReview checks that every score is within 1..10.
func ValidateReview(r entities.ResponseReview) error {
	for name, score := range map[string]int{
		"accuracy":     r.AccuracyScore,
		"insight":      r.InsightScore,
		"completeness": r.CompletenessScore,
	} {
		if score < 1 || score > 10 {
			return fmt.Errorf("%s score %d: %w", name, score, entities.ErrInvalidScore)
		}
	}
	if strings.TrimSpace(r.ReviewedResponseID) == "" {
		return fmt.Errorf("reviewed response id is empty: %w", entities.ErrInvalidScore)
	}
	return nil
}

// CalculateRankings ranks every reviewed response by its average total score,
// best first. Equal averages are ordered by response id.
func CalculateRankings(reviews []entities.ResponseReview) map[string]int {
	totals := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range reviews {
		totals[r.ReviewedResponseID] += r.Total()
		counts[r.ReviewedResponseID]++
	}

	type scored struct {
		id  string
		avg float64
	}
	avgs := make([]scored, 0, len(totals))
	for id, total := range totals {
		avgs = append(avgs, scored{id: id, avg: float64(total) / float64(counts[id])})
	}
	sort.Slice(avgs, func(i, j int) bool {
		if avgs[i].avg != avgs[j].avg {
			return avgs[i].avg > avgs[j].avg
		}
		return avgs[i].id < avgs[j].id
	})

	rankings := make(map[string]int, len(avgs))
	for i, a := range avgs {
		rankings[a.id] = i + 1
	}
	return rankings
}

// CalculateConfidence derives a 0..1 confidence from how tightly ranks cluster.
func CalculateConfidence(s *entities.CouncilSession) float64 {
	if len(s.IndividualResponses) == 0 {
		return 0.0
	}
	if len(s.Rankings) == 0 {
		return 0.5
	}

	ranks := make([]float64, 0, len(s.Rankings))
	for _, r := range s.Rankings {
		ranks = append(ranks, float64(r))
	}
	variance := stat.PopVariance(ranks, nil)

	confidence := 1.0 - min(variance/10.0, 1.0)
	return max(0.0, min(confidence, 1.0))
}

func dissentNotes(confidence float64, ranked int) *string {
	if ranked < 2 || confidence >= 0.5 {
		return nil
	}
	note := fmt.Sprintf("Council rankings were widely spread across %d responses (confidence %.2f)", ranked, confidence)
	return &note
}

func copyRankings(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
