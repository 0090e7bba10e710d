// Package api is the HTTP/UDS server exposed by every agent: the
// endpoints peer agents and local command-line helpers use to deliver
// tasks, inspect state, and manage reply targets. The same *gin.Engine
// serves a TCP listener and a Unix-domain-socket listener concurrently;
// neither listener's failure takes down the other.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiroa-systems/a2a-runtime/internal/apierr"
	"github.com/shiroa-systems/a2a-runtime/internal/httpmw"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/replytarget"
	"github.com/shiroa-systems/a2a-runtime/internal/supervisor"
	"github.com/shiroa-systems/a2a-runtime/internal/task"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// readTimeout bounds how long either listener takes to read a whole
// request; generous because peer agents may be under load, but finite
// so a stalled client can't pin a handler goroutine forever.
const readTimeout = 10 * time.Second

// Supervisor is the subset of *supervisor.Supervisor the server drives.
// Declared as an interface so handler tests can substitute a fake.
type Supervisor interface {
	Inject(payload string, priority int) error
	State() supervisor.State
}

// Server is the HTTP API for a single agent instance.
type Server struct {
	card        a2a.AgentCard
	tasks       *task.Store
	replies     *replytarget.Store
	supervisor  Supervisor
	logger      *logging.Logger
	router      *gin.Engine
	udsSockPath string
}

// Deps collects everything the server needs to wire its handlers.
type Deps struct {
	Card       a2a.AgentCard
	Tasks      *task.Store
	Replies    *replytarget.Store
	Supervisor Supervisor
	Logger     *logging.Logger
	UDSPath    string
}

// NewServer builds the router and registers every route. It does not
// start listening; call ListenAndServeTCP/ListenAndServeUDS for that.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	log := deps.Logger.WithFields(zap.String("component", "api-server"))
	s := &Server{
		card:        deps.Card,
		tasks:       deps.Tasks,
		replies:     deps.Replies,
		supervisor:  deps.Supervisor,
		logger:      log,
		router:      gin.New(),
		udsSockPath: deps.UDSPath,
	}

	s.router.Use(
		httpmw.Recovery(log),
		httpmw.RequestLogger(log, deps.Card.AgentID),
		httpmw.OtelTracing(deps.Card.AgentID),
	)
	s.setupRoutes()
	return s
}

// Router returns the HTTP handler, exported for tests that drive it
// with httptest without opening a real socket.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/.well-known/agent.json", s.handleAgentCard)

	s.router.POST("/tasks/send", s.handleSend)
	s.router.POST("/tasks/send-priority", s.handleSendPriority)
	s.router.POST("/tasks/create", s.handleCreate)
	s.router.GET("/tasks/:id", s.handleGetTask)
	s.router.GET("/tasks", s.handleListTasks)
	s.router.POST("/tasks/:id/cancel", s.handleCancelTask)

	s.router.GET("/status", s.handleStatus)

	s.router.GET("/reply-stack/get", s.handleReplyGet)
	s.router.GET("/reply-stack/pop", s.handleReplyPop)
}

// ListenAndServeTCP serves the router on a TCP listener bound to port,
// blocking until ctx is canceled or the listener fails.
func (s *Server) ListenAndServeTCP(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("api: listen tcp :%d: %w", port, err)
	}
	return s.serve(ctx, ln, "tcp")
}

// ListenAndServeUDS serves the router on a Unix-domain-socket listener
// at sockPath, blocking until ctx is canceled or the listener fails.
// Any stale socket file left by an unclean prior shutdown is removed
// first so bind doesn't fail with "address already in use".
func (s *Server) ListenAndServeUDS(ctx context.Context, sockPath string) error {
	ln, err := listenUnix(sockPath)
	if err != nil {
		return fmt.Errorf("api: listen uds %s: %w", sockPath, err)
	}
	return s.serve(ctx, ln, "uds")
}

func (s *Server) serve(ctx context.Context, ln net.Listener, transport string) error {
	httpServer := &http.Server{
		Handler:     s.router,
		ReadTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("listener shutdown", zap.String("transport", transport), zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api: %s listener: %w", transport, err)
		}
		return nil
	}
}

func (s *Server) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.card)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{State: string(s.supervisor.State())})
}

// StatusResponse is the body returned by GET /status.
type StatusResponse struct {
	State string `json:"state"`
}
