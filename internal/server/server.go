// Package server exposes voice sessions over a WebSocket and a small HTTP
// API for health, metrics and interaction history.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/voxaos/internal/auth"
	"github.com/normanking/voxaos/internal/logging"
	"github.com/normanking/voxaos/internal/session"
	"github.com/normanking/voxaos/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP and WebSocket traffic to sessions.
type Server struct {
	addr    string
	secret  []byte
	factory *session.Factory
	echo    *echo.Echo
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Server. The auth secret is read from the environment
// variable named by server.auth_secret_env; when it is empty the socket is
// open.
func New(factory *session.Factory) *Server {
	cfg := factory.Shared().Config
	s := &Server{
		addr:     cfg.Server.Addr(),
		factory:  factory,
		log:      logging.Component("server"),
		sessions: make(map[string]*session.Session),
	}
	if cfg.Server.AuthSecretEnv != "" {
		s.secret = []byte(os.Getenv(cfg.Server.AuthSecretEnv))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)
	e.GET("/ws/audio", s.handleAudio)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/history", s.handleHistory)

	s.echo = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", s.addr).Bool("auth", len(s.secret) > 0).Msg("listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP
// ═══════════════════════════════════════════════════════════════════════════════

type healthResponse struct {
	Status        string              `json:"status"`
	LLM           any                 `json:"llm"`
	Skills        []string            `json:"skills"`
	Sessions      int                 `json:"sessions"`
	PipelineState types.PipelineState `json:"pipeline_state"`
}

func (s *Server) handleHealth(c echo.Context) error {
	shared := s.factory.Shared()
	names := make([]string, 0, len(shared.Skills))
	for _, sk := range shared.Skills {
		names = append(names, sk.Name)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, state := s.pipelineState()
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		LLM:           shared.LLM.Health(ctx),
		Skills:        names,
		Sessions:      n,
		PipelineState: state,
	})
}

// pipelineState reports the session count and the first non-idle pipeline
// state, or IDLE.
func (s *Server) pipelineState() (int, types.PipelineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := types.StateIdle
	for _, sess := range s.sessions {
		if st := sess.Pipeline.State(); st != types.StateIdle {
			state = st
			break
		}
	}
	return len(s.sessions), state
}

func (s *Server) handleHistory(c echo.Context) error {
	capture := s.factory.Shared().Capture
	if capture == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "capture log disabled"})
	}
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	records, err := capture.Recent(c.Request().Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("history query failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
	}
	return c.JSON(http.StatusOK, records)
}

// ═══════════════════════════════════════════════════════════════════════════════
// WEBSOCKET
// ═══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAudio(c echo.Context) error {
	clientName := "anonymous"
	if len(s.secret) > 0 {
		claims, err := auth.Validate(s.secret, bearerToken(c))
		if err != nil {
			s.log.Warn().Err(err).Str("remote", c.RealIP()).Msg("rejected websocket token")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		clientName = claims.Client
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	sess, err := s.factory.New("")
	if err != nil {
		s.log.Error().Err(err).Msg("session create failed")
		_ = conn.Close()
		return nil
	}
	s.track(sess)
	defer func() {
		s.untrack(sess)
		if err := sess.Close(); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("session close failed")
		}
	}()

	s.log.Info().Str("session", sess.ID).Str("client", clientName).Str("remote", c.RealIP()).Msg("client connected")
	newClient(conn, sess).serve(c.Request().Context())
	s.log.Info().Str("session", sess.ID).Msg("client disconnected")
	return nil
}

func (s *Server) track(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Server) untrack(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
}

// bearerToken reads the token from the Authorization header or, for
// browsers that cannot set headers on a WebSocket, the token query param.
func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.QueryParam("token")
}
