package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/server"
	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/internal/storage"
	"github.com/agentcore/core/internal/task"
	"github.com/agentcore/core/pkg/types"
)

type fakeInvoker struct {
	result string
}

func (f *fakeInvoker) HandleQuery(ctx context.Context, prompt string, qctx executor.QueryContext, history []types.HistoryMessage) (string, error) {
	return f.result, nil
}

func newTestServer(t *testing.T, bearer string) (*server.Server, *session.Service) {
	t.Helper()
	sessions := session.NewService(storage.NewMemory())
	mgr := task.NewManager(sessions, &fakeInvoker{result: "ok"}, task.NewRegistry())
	cfg := server.DefaultConfig()
	cfg.BearerToken = bearer
	return server.New(cfg, sessions, &fakeInvoker{result: "ok"}, mgr), sessions
}

func TestCreateAndListSessions(t *testing.T) {
	srv, _ := newTestServer(t, "")

	body, _ := json.Marshal(map[string]string{"directory": "/tmp/work", "title": "first"})
	req := httptest.NewRequest(http.MethodPost, "/sessions/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created types.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	listReq := httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	listRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var sessions []*types.Session
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)
}

func TestDeleteSession(t *testing.T) {
	srv, sessions := newTestServer(t, "")
	sess, err := sessions.Create(context.Background(), "/tmp/work", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sess.ID, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = sessions.Get(context.Background(), sess.ID)
	assert.Error(t, err)
}

func TestGetMessagesUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/sessions/ses_does_not_exist/messages", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostPromptAccepted(t *testing.T) {
	srv, sessions := newTestServer(t, "")
	sess, err := sessions.Create(context.Background(), "/tmp/work", "", "")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"prompt": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/prompt", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostPromptMissingPromptRejected(t *testing.T) {
	srv, sessions := newTestServer(t, "")
	sess, err := sessions.Create(context.Background(), "/tmp/work", "", "")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/prompt", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuthAcceptsMatchingToken(t *testing.T) {
	srv, _ := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
