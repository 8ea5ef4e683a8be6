package repository_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises behaviour every Repository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.Repository) {
	t.Run("council session round trip", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetCouncilSession("missing")
		assert.True(t, errors.Is(err, entities.ErrSessionNotFound), "got %v", err)

		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		sess := &entities.CouncilSession{
			SessionID: "session-q1",
			Config:    entities.DefaultCouncilConfig(),
			Query:     entities.CouncilQuery{QueryID: "q1", UserQuery: "why?", Priority: entities.PriorityHigh},
			Stage:     entities.StagePending,
			Rankings:  map[string]int{},
			CreatedAt: created,
		}
		require.NoError(t, repo.SaveCouncilSession(sess))

		sess.Stage = entities.StageCollectingResponses
		sess.IndividualResponses = append(sess.IndividualResponses, entities.LLMResponse{ProviderID: "gpt4", Response: "because", TokensUsed: 3})
		sess.TotalTokens = 3
		require.NoError(t, repo.SaveCouncilSession(sess))

		got, err := repo.GetCouncilSession("session-q1")
		require.NoError(t, err)
		assert.Equal(t, entities.StageCollectingResponses, got.Stage)
		assert.Equal(t, 3, got.TotalTokens)
		require.Len(t, got.IndividualResponses, 1)
		assert.Equal(t, "because", got.IndividualResponses[0].Response)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Len(t, got.Config.Members, 3)

		// mutating the returned copy must not leak into storage
		got.IndividualResponses[0].Response = "tampered"
		again, err := repo.GetCouncilSession("session-q1")
		require.NoError(t, err)
		assert.Equal(t, "because", again.IndividualResponses[0].Response)

		require.NoError(t, repo.SaveCouncilSession(&entities.CouncilSession{SessionID: "session-q2", Stage: entities.StagePending, CreatedAt: created.Add(time.Hour)}))
		all, err := repo.ListCouncilSessions()
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("query sessions newest first with limit", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetQuerySession("missing")
		assert.True(t, errors.Is(err, entities.ErrSessionNotFound), "got %v", err)

		base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			require.NoError(t, repo.SaveQuerySession(&entities.QuerySession{
				SessionID: fmt.Sprintf("alice-%d", i),
				User:      "alice",
				UserQuery: fmt.Sprintf("q%d", i),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, repo.SaveQuerySession(&entities.QuerySession{SessionID: "bob-0", User: "bob", CreatedAt: base}))

		sessions, err := repo.ListUserQuerySessions("alice", 2)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "alice-3", sessions[0].SessionID)
		assert.Equal(t, "alice-2", sessions[1].SessionID)

		sessions, err = repo.ListUserQuerySessions("alice", 0)
		require.NoError(t, err)
		assert.Len(t, sessions, 4)

		sessions, err = repo.ListUserQuerySessions("carol", 10)
		require.NoError(t, err)
		assert.Empty(t, sessions)

		tokens := 12
		done := base.Add(time.Hour)
		update := &entities.QuerySession{
			SessionID:       "bob-0",
			User:            "bob",
			CreatedAt:       base,
			Responses:       []entities.ModelResponse{{Model: "m", Response: "r", Success: true, TokensGenerated: &tokens}},
			Consensus:       &entities.Consensus{FinalResponse: "r", ConfidenceScore: 0.7, SynthesisMethod: "single_response"},
			CompletedAt:     &done,
			TotalTokensUsed: 12,
			TotalCostUSD:    0.0012,
		}
		require.NoError(t, repo.SaveQuerySession(update))
		got, err := repo.GetQuerySession("bob-0")
		require.NoError(t, err)
		require.NotNil(t, got.Consensus)
		assert.Equal(t, "r", got.Consensus.FinalResponse)
		assert.Equal(t, 12, *got.Responses[0].TokensGenerated)
		assert.InDelta(t, 0.0012, got.TotalCostUSD, 1e-12)
	})

	t.Run("chat history keeps the tail in order", func(t *testing.T) {
		repo := newRepo(t)

		history, err := repo.ChatHistory("alice", "agent-1", 10)
		require.NoError(t, err)
		assert.Empty(t, history)

		ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 6; i++ {
			require.NoError(t, repo.AppendChatMessages("alice", "agent-1",
				entities.ChatMessage{Role: "user", Content: fmt.Sprintf("u%d", i), Timestamp: ts},
				entities.ChatMessage{Role: "assistant", Content: fmt.Sprintf("a%d", i), Timestamp: ts},
			))
		}
		require.NoError(t, repo.AppendChatMessages("alice", "agent-2", entities.ChatMessage{Role: "user", Content: "other"}))

		history, err = repo.ChatHistory("alice", "agent-1", 3)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "a4", history[0].Content)
		assert.Equal(t, "u5", history[1].Content)
		assert.Equal(t, "a5", history[2].Content)

		history, err = repo.ChatHistory("alice", "agent-1", 0)
		require.NoError(t, err)
		assert.Len(t, history, 12)
	})

	t.Run("memory documents", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetMemoryDocument("alice", "agent-1")
		assert.True(t, errors.Is(err, entities.ErrMemoryNotFound), "got %v", err)

		require.NoError(t, repo.SaveMemoryDocument("alice", "agent-1", []byte(`{"v":1}`)))
		require.NoError(t, repo.SaveMemoryDocument("alice", "agent-1", []byte(`{"v":2}`)))

		doc, err := repo.GetMemoryDocument("alice", "agent-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(doc))

		_, err = repo.GetMemoryDocument("bob", "agent-1")
		assert.True(t, errors.Is(err, entities.ErrMemoryNotFound), "got %v", err)
	})
}
