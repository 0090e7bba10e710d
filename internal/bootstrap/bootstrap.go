// Package bootstrap wires every other package into one running agent:
// it loads the profile and environment configuration, allocates a
// port, opens the registry and the two stores, spawns the supervisor,
// starts the dual-listener server, and registers the agent so peers
// can find it. On shutdown it reverses every step that left state on
// disk.
package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/shiroa-systems/a2a-runtime/internal/api"
	"github.com/shiroa-systems/a2a-runtime/internal/config"
	"github.com/shiroa-systems/a2a-runtime/internal/constants"
	"github.com/shiroa-systems/a2a-runtime/internal/filesafety"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/portalloc"
	"github.com/shiroa-systems/a2a-runtime/internal/profile"
	"github.com/shiroa-systems/a2a-runtime/internal/registry"
	"github.com/shiroa-systems/a2a-runtime/internal/replytarget"
	"github.com/shiroa-systems/a2a-runtime/internal/supervisor"
	"github.com/shiroa-systems/a2a-runtime/internal/task"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// Agent is one fully wired runtime instance, ready to Run.
type Agent struct {
	cfg     *config.Config
	prof    *profile.Profile
	logger  *logging.Logger
	agentID string
	port    int
	udsPath string

	registry   *registry.Registry
	replies    *replytarget.Store
	filesafety *filesafety.Store
	tasks      *task.Store
	supervisor *supervisor.Supervisor
	server     *api.Server

	approveOnce sync.Once
}

// New loads configuration and a profile, allocates a port, opens every
// store, and spawns the wrapped program under the supervisor. It does
// not register the agent; Run does that before starting the listeners.
func New() (*Agent, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	if cfg.ProfilePath == "" {
		return nil, fmt.Errorf("bootstrap: A2A_PROFILE must name a profile file")
	}

	prof, err := profile.LoadFile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load profile: %w", err)
	}

	log, err := logging.NewLogger(logging.LoggingConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init logger: %w", err)
	}
	log = log.WithFields(zap.String("kind", prof.Kind))

	port, err := portalloc.New(prof.Ports.Base, prof.Ports.Max).Allocate()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: allocate port: %w", err)
	}
	agentID := cfg.AgentID(prof.Kind, port)
	udsPath := cfg.UDSPath(agentID)

	reg, err := cfg.OpenRegistry()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open registry: %w", err)
	}
	replies, err := replytarget.Open(cfg.RegistryDir, agentID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open reply-target store: %w", err)
	}
	fsStore, err := filesafety.Open(cfg.FileSafetyDBPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open file-safety store: %w", err)
	}
	tasks := task.NewStore()

	if err := os.MkdirAll(cfg.ScratchDir, 0700); err != nil {
		return nil, fmt.Errorf("bootstrap: create scratch directory: %w", err)
	}

	a := &Agent{
		cfg:        cfg,
		prof:       prof,
		logger:     log,
		agentID:    agentID,
		port:       port,
		udsPath:    udsPath,
		registry:   reg,
		replies:    replies,
		filesafety: fsStore,
		tasks:      tasks,
	}

	sup, err := supervisor.New(supervisor.Options{
		Profile:    prof,
		Logger:     log,
		UserInput:  os.Stdin,
		UserOutput: os.Stdout,
		ScratchDir: cfg.ScratchDir,
		OnState:    a.onStateChange,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: start supervisor: %w", err)
	}
	a.supervisor = sup

	card := a2a.AgentCard{
		AgentID:  agentID,
		Kind:     prof.Kind,
		Endpoint: fmt.Sprintf("http://127.0.0.1:%d", port),
		UDSPath:  udsPath,
	}
	a.server = api.NewServer(api.Deps{
		Card:       card,
		Tasks:      tasks,
		Replies:    replies,
		Supervisor: sup,
		Logger:     log,
		UDSPath:    udsPath,
	})

	return a, nil
}

// onStateChange is the supervisor's StateChangeFunc. The first time the
// wrapped program is observed ready, it delivers the profile's initial
// instruction, gated behind an interactive confirmation when the
// profile asks for one and a terminal is actually attached; every
// other transition is ignored.
func (a *Agent) onStateChange(old, newState supervisor.State) {
	if newState != supervisor.StateReady {
		return
	}
	a.approveOnce.Do(func() {
		if a.prof.InitialInstruction == "" {
			return
		}
		if a.prof.ApprovalMode == "interactive" && term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintf(os.Stdout, "\na2a: %s is ready to receive its initial instruction. Press Enter to continue: ", a.agentID)
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		}
		if err := a.supervisor.Inject(a.prof.InitialInstruction, 3); err != nil {
			a.logger.Warn("failed to inject initial instruction", zap.Error(err))
		}
	})
}

// Run registers the agent, serves both listeners and the supervisor
// concurrently, and blocks until ctx is canceled, SIGINT/SIGTERM
// arrives, or the wrapped program exits on its own. It always tears
// down every piece of on-disk state before returning.
func (a *Agent) Run(ctx context.Context) error {
	entry := registry.Entry{
		AgentID:   a.agentID,
		Kind:      a.prof.Kind,
		PID:       os.Getpid(),
		Port:      a.port,
		Endpoint:  fmt.Sprintf("http://127.0.0.1:%d", a.port),
		UDSPath:   a.udsPath,
		StartedAt: time.Now(),
	}
	if err := a.registry.Register(entry); err != nil {
		return fmt.Errorf("bootstrap: register agent: %w", err)
	}
	defer a.teardown()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	g, gctx := errgroup.WithContext(runCtx)
	// A listener failure is logged, not returned, so it does not cancel
	// the group and stop the other listener.
	g.Go(func() error {
		if err := a.server.ListenAndServeTCP(gctx, a.port); err != nil {
			a.logger.Error("tcp listener stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if err := a.server.ListenAndServeUDS(gctx, a.udsPath); err != nil {
			a.logger.Error("uds listener stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error { return a.supervisor.Run(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case s := <-sig:
			a.logger.Info("shutdown signal received", zap.String("signal", s.String()))
			cancel()
			return nil
		}
	})

	a.logger.Info("agent started",
		zap.String("agent_id", a.agentID),
		zap.Int("port", a.port),
		zap.String("uds_path", a.udsPath),
	)

	err := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownGrace)
	if shutErr := a.supervisor.Shutdown(shutdownCtx); shutErr != nil {
		a.logger.Warn("failed to terminate wrapped program", zap.Error(shutErr))
	}
	shutdownCancel()
	if closeErr := a.supervisor.Close(); closeErr != nil {
		a.logger.Warn("failed to close pty handle", zap.Error(closeErr))
	}

	return err
}

// teardown reverses every piece of durable state Run's setup created:
// the registry entry, this agent's process-owned file-safety locks,
// the Unix-domain socket file, and the reply-target file. Each step is
// best-effort and logged, not fatal, since shutdown must still make
// forward progress if one of them fails.
func (a *Agent) teardown() {
	if _, err := a.filesafety.ReleaseAllHeldBy(a.agentID); err != nil {
		a.logger.Warn("failed to release file-safety locks", zap.Error(err))
	}
	if err := a.filesafety.Close(); err != nil {
		a.logger.Warn("failed to close file-safety store", zap.Error(err))
	}
	if err := a.registry.Unregister(a.agentID); err != nil {
		a.logger.Warn("failed to unregister agent", zap.Error(err))
	}
	if err := os.Remove(a.udsPath); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to remove uds socket", zap.Error(err))
	}
	replyPath := filepath.Join(a.cfg.RegistryDir, a.agentID+".reply.json")
	if err := os.Remove(replyPath); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to remove reply-target file", zap.Error(err))
	}
	a.logger.Info("agent stopped", zap.String("agent_id", a.agentID))
	_ = a.logger.Sync()
}

// AgentID returns the identifier this instance registered under.
func (a *Agent) AgentID() string {
	return a.agentID
}
