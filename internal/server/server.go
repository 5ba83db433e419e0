// Package server is the HTTP surface: one chat endpoint plus session
// inspection and deletion. Specific failures are logged; callers get a
// generic error body with a status drawn from the error taxonomy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsrag/config"
	"newsrag/internal/apperr"
	"newsrag/internal/metrics"
	"newsrag/internal/rag"
	"newsrag/internal/resilience"
	"newsrag/internal/retrieval"
	"newsrag/internal/session"
)

// ChatService is what the HTTP layer needs from the orchestrator.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (rag.Answer, error)
	History(ctx context.Context, sessionID string) ([]session.Turn, error)
	Reset(ctx context.Context, sessionID string) error
}

type Server struct {
	e      *echo.Echo
	svc    ChatService
	logger *log.Logger
}

func New(svc ChatService, cfg config.ServerConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "internal error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s: %v", code, req.Method, req.URL.Path, err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	s := &Server{e: e, svc: svc, logger: logger}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api := e.Group("/api")
	api.POST("/chat", s.chat)
	api.GET("/sessions/:id", s.sessionHistory)
	api.DELETE("/sessions/:id", s.deleteSession)

	return s
}

func (s *Server) chat(c echo.Context) error {
	started := time.Now()
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		metrics.ChatRequests.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ans, err := s.svc.Chat(c.Request().Context(), req.SessionID, req.Message)
	metrics.ChatDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ChatRequests.WithLabelValues("error").Inc()
		return chatError(err)
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	if ans.Citations == nil {
		ans.Citations = []retrieval.Citation{}
	}
	return c.JSON(http.StatusOK, chatResponse{
		Reply:     ans.Reply,
		Citations: ans.Citations,
		SessionID: ans.SessionID,
	})
}

// chatError maps the error taxonomy to a status with a generic body; the
// specific error is already on its way to the log via the error handler.
func chatError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "message is required").SetInternal(err)
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable").SetInternal(err)
	}
	var ue *resilience.UpstreamError
	if errors.As(err, &ue) {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream service error").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func (s *Server) sessionHistory(c echo.Context) error {
	id := c.Param("id")
	turns, err := s.svc.History(c.Request().Context(), id)
	if err != nil {
		return chatError(err)
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	return c.JSON(http.StatusOK, sessionResponse{SessionID: id, Turns: turns})
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.svc.Reset(c.Request().Context(), c.Param("id")); err != nil {
		return chatError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.e.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
