package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/replytarget"
	"github.com/shiroa-systems/a2a-runtime/internal/supervisor"
	"github.com/shiroa-systems/a2a-runtime/internal/task"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// fakeSupervisor records every injection instead of driving a real PTY.
type fakeSupervisor struct {
	injected []string
	priority []int
	state    supervisor.State
}

func (f *fakeSupervisor) Inject(payload string, priority int) error {
	f.injected = append(f.injected, payload)
	f.priority = append(f.priority, priority)
	return nil
}

func (f *fakeSupervisor) State() supervisor.State { return f.state }

func newTestServer(t *testing.T) (*Server, *fakeSupervisor) {
	t.Helper()
	replies, err := replytarget.Open(t.TempDir(), "agent-a")
	require.NoError(t, err)

	sup := &fakeSupervisor{state: supervisor.StateReady}
	s := NewServer(Deps{
		Card: a2a.AgentCard{
			AgentID:  "a2a-claude-8100",
			Kind:     "claude",
			Endpoint: "http://127.0.0.1:8100",
		},
		Tasks:      task.NewStore(),
		Replies:    replies,
		Supervisor: sup,
		Logger:     logging.Default(),
	})
	return s, sup
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestAgentCardServesIdentity(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/.well-known/agent.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "a2a-claude-8100", card.AgentID)
}

func TestSendCreatesTaskRecordsReplyTargetAndInjects(t *testing.T) {
	s, sup := newTestServer(t)

	req := SendTaskRequest{
		Message: a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{{Kind: a2a.PartText, Text: "hello"}}},
		Metadata: a2a.Metadata{
			ResponseExpected: true,
			Sender: &a2a.SenderDescriptor{
				AgentID:  "a2a-gpt-8200",
				Kind:     "gpt",
				Endpoint: "http://127.0.0.1:8200",
			},
		},
	}
	rec := doJSON(t, s, http.MethodPost, "/tasks/send", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var gotTask a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTask))
	assert.Equal(t, a2a.StateWorking, gotTask.State)
	assert.Len(t, gotTask.ID, 32)

	require.Len(t, sup.injected, 1)
	assert.Contains(t, sup.injected[0], "[REPLY EXPECTED]")
	assert.Contains(t, sup.injected[0], "hello")
	assert.Equal(t, defaultPriority, sup.priority[0])

	_, ok := s.replies.Lookup("a2a-gpt-8200")
	assert.True(t, ok)
}

func TestSendPriorityRejectsOutOfRangeValue(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/send-priority?priority=9", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendPriorityHonorsRequestedLane(t *testing.T) {
	s, sup := newTestServer(t)
	req := SendTaskRequest{Message: a2a.Message{Parts: []a2a.Part{{Kind: a2a.PartText, Text: "go"}}}}
	rec := doJSON(t, s, http.MethodPost, "/tasks/send-priority?priority=5", req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sup.priority, 1)
	assert.Equal(t, 5, sup.priority[0])
}

func TestCreateDoesNotDeliverToSupervisor(t *testing.T) {
	s, sup := newTestServer(t)
	req := CreateTaskRequest{Message: a2a.Message{Parts: []a2a.Part{{Kind: a2a.PartText, Text: "reserved"}}}}
	rec := doJSON(t, s, http.MethodPost, "/tasks/create", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var gotTask a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotTask))
	assert.Equal(t, a2a.StateSubmitted, gotTask.State)
	assert.Empty(t, sup.injected)
}

func TestGetTaskByPrefix(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/tasks/create", CreateTaskRequest{})
	var created a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodGet, "/tasks/"+created.ID[:8], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestGetTaskNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/tasks/deadbeefdeadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTransitionsNonTerminalTask(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/tasks/create", CreateTaskRequest{})
	var created a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodPost, "/tasks/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var canceled a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &canceled))
	assert.Equal(t, a2a.StateCanceled, canceled.State)
}

func TestCancelRejectsAlreadyTerminalTask(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/tasks/create", CreateTaskRequest{})
	var created a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodPost, "/tasks/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/tasks/"+created.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatusReflectsSupervisorState(t *testing.T) {
	s, sup := newTestServer(t)
	sup.state = supervisor.StateWaiting
	rec := doJSON(t, s, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "waiting", status.State)
}

func TestReplyStackGetPeeksWithoutRemoving(t *testing.T) {
	s, _ := newTestServer(t)
	sender := a2a.SenderDescriptor{AgentID: "peer-1", Kind: "claude", Endpoint: "http://127.0.0.1:9000"}
	require.NoError(t, s.replies.Record(a2a.Metadata{ResponseExpected: true, Sender: &sender}))

	rec := doJSON(t, s, http.MethodGet, "/reply-stack/get", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.replies.Lookup("peer-1")
	assert.True(t, ok)
}

func TestReplyStackPopRemovesEntry(t *testing.T) {
	s, _ := newTestServer(t)
	sender := a2a.SenderDescriptor{AgentID: "peer-1", Kind: "claude", Endpoint: "http://127.0.0.1:9000"}
	require.NoError(t, s.replies.Record(a2a.Metadata{ResponseExpected: true, Sender: &sender}))

	rec := doJSON(t, s, http.MethodGet, "/reply-stack/pop?sender=peer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.replies.Lookup("peer-1")
	assert.False(t, ok)
}

func TestReplyStackGetNotFoundWhenEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/reply-stack/get", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksReturnsEveryTask(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/tasks/create", CreateTaskRequest{})
	doJSON(t, s, http.MethodPost, "/tasks/create", CreateTaskRequest{})

	rec := doJSON(t, s, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []a2a.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tasks, 2)
}
