package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shiroa-systems/a2a-runtime/internal/apierr"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// SendTaskRequest is the body accepted by /tasks/send and
// /tasks/send-priority.
type SendTaskRequest struct {
	Message   a2a.Message  `json:"message"`
	Metadata  a2a.Metadata `json:"metadata"`
	ContextID string       `json:"context_id,omitempty"`
}

// defaultPriority is the injection priority /tasks/send uses when the
// caller does not go through /tasks/send-priority.
const defaultPriority = 3

// handleSend is the handler for /tasks/send: always injects at
// defaultPriority. handleSendPriority reads its own priority from the
// query string and calls deliver directly.
func (s *Server) handleSend(c *gin.Context) {
	s.deliver(c, defaultPriority)
}

func (s *Server) handleSendPriority(c *gin.Context) {
	raw := c.Query("priority")
	priority, err := strconv.Atoi(raw)
	if err != nil || priority < 1 || priority > 5 {
		apierr.InvalidInput(c, fmt.Sprintf("priority must be an integer 1-5, got %q", raw))
		return
	}
	s.deliver(c, priority)
}

// deliver implements the seven-step task delivery pipeline: parse,
// record the reply target if one was requested, allocate and persist
// the task, hand its text to the supervisor, transition to working,
// and return immediately without waiting on the wrapped program's
// output.
func (s *Server) deliver(c *gin.Context, priority int) {
	var req SendTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.InvalidInput(c, "invalid request body: "+err.Error())
		return
	}

	if req.Metadata.ResponseExpected && req.Metadata.Sender.Valid() {
		if err := s.replies.Record(req.Metadata); err != nil {
			apierr.Internal(c, "record reply target: "+err.Error())
			return
		}
	}

	t := s.tasks.Create(req.Message, req.Metadata, req.ContextID)

	payload := formatMessageText(req.Message)
	if req.Metadata.ResponseExpected {
		payload = "[REPLY EXPECTED] " + payload
	}
	if err := s.supervisor.Inject(payload, priority); err != nil {
		apierr.Internal(c, "deliver to supervisor: "+err.Error())
		return
	}

	if err := s.tasks.Transition(t.ID, a2a.StateWorking); err != nil {
		apierr.Internal(c, "transition task: "+err.Error())
		return
	}
	t, _ = s.tasks.Get(t.ID)

	c.JSON(http.StatusOK, t)
}

// formatMessageText joins every text part with a newline. Non-text
// parts are rendered as a short bracketed marker so the wrapped
// program's transcript shows that something was attached, without
// trying to inline binary content into a terminal injection.
func formatMessageText(msg a2a.Message) string {
	var b strings.Builder
	for i, part := range msg.Parts {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch part.Kind {
		case a2a.PartText:
			b.WriteString(part.Text)
		case a2a.PartFile:
			name := "file"
			if part.File != nil && part.File.Name != "" {
				name = part.File.Name
			}
			b.WriteString(fmt.Sprintf("[attached file: %s]", name))
		case a2a.PartData:
			b.WriteString("[attached data]")
		}
	}
	return b.String()
}

// CreateTaskRequest is the body accepted by /tasks/create.
type CreateTaskRequest struct {
	Message   a2a.Message  `json:"message"`
	Metadata  a2a.Metadata `json:"metadata"`
	ContextID string       `json:"context_id,omitempty"`
}

// handleCreate allocates a task record without delivering it to the
// PTY. Senders call this on their own server to mint a sender-side
// task id before posting a reply-expecting message to a peer.
func (s *Server) handleCreate(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.InvalidInput(c, "invalid request body: "+err.Error())
		return
	}
	t := s.tasks.Create(req.Message, req.Metadata, req.ContextID)
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.tasks.Resolve(c.Param("id"))
	if err != nil {
		s.respondTaskLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.tasks.List()})
}

func (s *Server) handleCancelTask(c *gin.Context) {
	t, err := s.tasks.Resolve(c.Param("id"))
	if err != nil {
		s.respondTaskLookupError(c, err)
		return
	}
	if t.State.Terminal() {
		apierr.Abort(c, apierr.CodeConflict, fmt.Sprintf("task %s is already in terminal state %s", t.ID, t.State))
		return
	}
	if err := s.tasks.Transition(t.ID, a2a.StateCanceled); err != nil {
		apierr.Internal(c, err.Error())
		return
	}
	t, _ = s.tasks.Get(t.ID)
	c.JSON(http.StatusOK, t)
}

// respondTaskLookupError distinguishes an ambiguous-prefix match (a
// structured conflict naming the candidates) from an ordinary
// not-found, per the documented ambiguous-prefix behavior.
func (s *Server) respondTaskLookupError(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "matches") && strings.Contains(err.Error(), "tasks") {
		apierr.Abort(c, apierr.CodeConflict, err.Error())
		return
	}
	apierr.NotFound(c, err.Error())
}
