package council

import (
	"fmt"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

// StageTransition is one edge of the council pipeline.
type StageTransition struct {
	From entities.Stage
	To   entities.Stage
}

// StageMachine guards council stage changes. The pipeline only moves
// forward; failed is reachable from any stage that is not terminal.
type StageMachine struct {
	allowedTransitions map[StageTransition]bool
}

// NewStageMachine builds the forward-only transition table.
func NewStageMachine() *StageMachine {
	sm := &StageMachine{
		allowedTransitions: make(map[StageTransition]bool),
	}

	pipeline := []entities.Stage{
		entities.StagePending,
		entities.StageCollectingResponses,
		entities.StageReviewingResponses,
		entities.StageGeneratingConsensus,
		entities.StageCompleted,
	}
	for i, from := range pipeline {
		// a council of one skips straight from pending to reviewing
		for _, to := range pipeline[i+1:] {
			sm.allowedTransitions[StageTransition{From: from, To: to}] = true
		}
		if !from.IsTerminal() {
			sm.allowedTransitions[StageTransition{From: from, To: entities.StageFailed}] = true
		}
	}

	return sm
}

// CanTransition reports whether from -> to is a legal move.
func (sm *StageMachine) CanTransition(from, to entities.Stage) bool {
	return sm.allowedTransitions[StageTransition{From: from, To: to}]
}

// ValidateTransition returns an error for illegal moves.
func (sm *StageMachine) ValidateTransition(from, to entities.Stage) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStageTransitionError{From: from, To: to}
	}
	return nil
}

// Advance moves a session towards target. Staying put and moving backwards
// are both no-ops so that late responses never regress a session.
func (sm *StageMachine) Advance(session *entities.CouncilSession, target entities.Stage) error {
	from := session.Stage
	if from.IsTerminal() {
		return fmt.Errorf("session %s is %s: %w", session.SessionID, from, entities.ErrSessionTerminal)
	}
	if from == target || (target != entities.StageFailed && target.Ordinal() < from.Ordinal()) {
		return nil
	}
	if err := sm.ValidateTransition(from, target); err != nil {
		klog.V(6).Infof("council stage transition rejected: session=%s, %s -> %s, error=%v",
			session.SessionID, from, target, err)
		return err
	}

	session.Stage = target
	klog.V(6).Infof("council stage transition: session=%s, %s -> %s", session.SessionID, from, target)
	return nil
}

// InvalidStageTransitionError is returned for a move the pipeline forbids.
type InvalidStageTransitionError struct {
	From entities.Stage
	To   entities.Stage
}

func (e *InvalidStageTransitionError) Error() string {
	return fmt.Sprintf("invalid council stage transition: %s -> %s", e.From, e.To)
}

// Unwrap lets callers match with errors.Is(err, entities.ErrInvalidTransition).
func (e *InvalidStageTransitionError) Unwrap() error {
	return entities.ErrInvalidTransition
}
