package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessionLister struct {
	GetSessionFunc   func(principal, sessionID string) (*entities.QuerySession, error)
	UserSessionsFunc func(principal string, limit int) ([]*entities.QuerySession, error)
}

func (m *mockSessionLister) GetSession(principal, sessionID string) (*entities.QuerySession, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(principal, sessionID)
	}
	return nil, errors.New("GetSession not implemented")
}

func (m *mockSessionLister) UserSessions(principal string, limit int) ([]*entities.QuerySession, error) {
	if m.UserSessionsFunc != nil {
		return m.UserSessionsFunc(principal, limit)
	}
	return nil, errors.New("UserSessions not implemented")
}

func TestSessionStatusHandler_HandleList(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		listErr    error
		wantStatus int
		wantLimit  int
	}{
		{name: "default limit", wantStatus: http.StatusOK, wantLimit: defaultSessionLimit},
		{name: "explicit limit", query: "?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "limit capped", query: "?limit=1000", wantStatus: http.StatusOK, wantLimit: maxSessionLimit},
		{name: "bad limit", query: "?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "store error", listErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantLimit: defaultSessionLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			lister := &mockSessionLister{UserSessionsFunc: func(principal string, limit int) ([]*entities.QuerySession, error) {
				assert.Equal(t, "bob", principal)
				gotLimit = limit
				if tt.listErr != nil {
					return nil, tt.listErr
				}
				return []*entities.QuerySession{{SessionID: "a"}, {SessionID: "b"}}, nil
			}}
			rr := doRequest(t, newTestEngine(NewSessionStatusHandler(lister)), http.MethodGet, "/api/council/sessions"+tt.query, "bob", nil)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantLimit, gotLimit)
			if tt.wantStatus == http.StatusOK {
				body := decode[struct {
					Data  []entities.QuerySession `json:"data"`
					Total int                     `json:"total"`
				}](t, rr)
				assert.Equal(t, 2, body.Total)
				assert.Equal(t, "a", body.Data[0].SessionID)
			}
		})
	}
}

func TestSessionStatusHandler_HandleSingle(t *testing.T) {
	lister := &mockSessionLister{GetSessionFunc: func(principal, sessionID string) (*entities.QuerySession, error) {
		if principal != "bob" || sessionID != "mine" {
			return nil, entities.ErrSessionNotFound
		}
		return &entities.QuerySession{SessionID: sessionID, User: principal}, nil
	}}
	r := newTestEngine(NewSessionStatusHandler(lister))

	rr := doRequest(t, r, http.MethodGet, "/api/council/sessions/mine", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mine", decode[entities.QuerySession](t, rr).SessionID)

	rr = doRequest(t, r, http.MethodGet, "/api/council/sessions/mine", "eve", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
