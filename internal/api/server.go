package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/doorguard/internal/access"
	"github.com/nerrad567/doorguard/internal/audit"
	"github.com/nerrad567/doorguard/internal/auth"
	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/infrastructure/logging"
	"github.com/nerrad567/doorguard/internal/policy"
	"github.com/nerrad567/doorguard/internal/voice"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Login throttling.
const (
	loginMaxFailures = 5
	loginWindow      = 5 * time.Minute
	loginLockout     = 15 * time.Minute
)

// AccessController is the orchestrator surface the API drives.
type AccessController interface {
	Status() access.Status
	RestartSession() error
	SwitchMode(ctx context.Context, mode policy.Mode) error
	SubmitPasscode(code string) error
	CancelPasscode() error
	TriggerAdmin(source string) error
	SubmitAdminPasscode(ctx context.Context, code string) error
	CancelAdmin(ctx context.Context) error
}

// PolicyStore is the policy surface the API reads and edits.
type PolicyStore interface {
	VerifyAdminPasscode(code string) (bool, error)
	Mode() policy.Mode
	Cards() []policy.CardID
	Fingerprints() []int
	HasPasscode() bool
	History() []policy.ModeChange
	SetPasscode(ctx context.Context, code string) error
	SetAdminPasscode(ctx context.Context, code string) error
	AddCard(ctx context.Context, id policy.CardID) error
	RemoveCard(ctx context.Context, id policy.CardID) error
	AddFingerprint(ctx context.Context, id int) error
	RemoveFingerprint(ctx context.Context, id int) error
}

// VoiceTester plays operator test announcements.
type VoiceTester interface {
	ForceSpeak(key, text string)
	Stats() voice.Stats
}

// HealthChecker is a dependency checked by /health.
type HealthChecker func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Site     string
	Logger   *logging.Logger
	Access   AccessController
	Policy   PolicyStore
	Audit    audit.Repository
	Voice    VoiceTester
	Events   events.Poster
	// Dropped reports events lost by the dispatcher (optional).
	Dropped func() uint64
	// Health lists named dependency checks (optional).
	Health map[string]HealthChecker
	// Shutdown is called after a confirmed exit request (optional).
	Shutdown func()
	Version  string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	site      string
	logger    *logging.Logger
	access    AccessController
	policy    PolicyStore
	audit     audit.Repository
	voice     VoiceTester
	events    events.Poster
	dropped   func() uint64
	health    map[string]HealthChecker
	shutdown  func()
	version   string
	startTime time.Time

	hub      *Hub
	tickets  *ticketStore
	throttle *auth.Throttle
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but the WebSocket hub
// exists from here on so EventSink can be registered before Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Access == nil {
		return nil, errors.New("access controller is required")
	}
	if deps.Policy == nil {
		return nil, errors.New("policy store is required")
	}
	if deps.Events == nil {
		deps.Events = events.PosterFunc(func(events.Event) bool { return false })
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		site:      deps.Site,
		logger:    deps.Logger.Component("api"),
		access:    deps.Access,
		policy:    deps.Policy,
		audit:     deps.Audit,
		voice:     deps.Voice,
		events:    deps.Events,
		dropped:   deps.Dropped,
		health:    deps.Health,
		shutdown:  deps.Shutdown,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger.Component("websocket")),
		tickets:   newTicketStore(),
		throttle:  auth.NewThrottle(loginMaxFailures, loginWindow, loginLockout),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the WebSocket hub, the housekeeping loop and the HTTP
// listener in the background.
//
// Parameters:
//   - ctx: Parent context for the hub and housekeeping goroutines
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.housekeepingLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// housekeepingLoop expires WebSocket tickets and stale login throttling
// records.
func (s *Server) housekeepingLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.clean()
			s.throttle.Prune()
		}
	}
}
