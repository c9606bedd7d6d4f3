// Package httpapi is the HTTP ingest surface of the bridge.
package httpapi

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/db"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/source"
	"github.com/hpungsan/vocap/internal/utterance"
)

// MaxBodyBytes bounds an ingest request body.
const MaxBodyBytes = 1 << 20

//go:embed observer.js
var observerScript []byte

// Capturer runs one raw utterance through the capture pipeline.
type Capturer interface {
	Capture(ctx context.Context, raw utterance.Raw) capture.Result
}

// StatsProvider summarizes the dedup ledger.
type StatsProvider interface {
	Stats(ctx context.Context) (*db.Summary, error)
}

// Server provides the ingest, health and metrics endpoints.
type Server struct {
	echo     *echo.Echo
	capturer Capturer
	stats    StatsProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer creates a new HTTP server. gatherer may be nil to disable /metrics.
func NewServer(capturer Capturer, stats StatsProvider, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if capturer == nil {
		return nil, fmt.Errorf("capturer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		capturer: capturer,
		stats:    stats,
		logger:   logger,
		now:      time.Now,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/observer.js", s.handleObserver)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/utterances", s.handleUtterances, middleware.BodyLimit("1M"))
	if s.stats != nil {
		v1.GET("/ledger/stats", s.handleLedgerStats)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// UtterancesResponse is the response body for POST /api/v1/utterances.
type UtterancesResponse struct {
	Results []capture.Result `json:"results"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody mirrors the structured error fields.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleObserver(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", observerScript)
}

// handleUtterances accepts either {"text": ..., "source_id": ...}, any JSON
// payload carrying text-like keys, or a plain text body.
func (s *Server) handleUtterances(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxBodyBytes+1))
	if err != nil {
		return errors.NewInvalidRequest("failed to read request body")
	}
	if len(body) > MaxBodyBytes {
		return errors.NewInvalidRequest("request body too large")
	}

	texts := source.Extract(string(body))
	if len(texts) == 0 {
		return errors.NewInvalidRequest("no text found in request body")
	}

	sourceID := ""
	if gjson.ValidBytes(body) {
		sourceID = gjson.GetBytes(body, "source_id").String()
	}

	at := s.now()
	resp := UtterancesResponse{Results: make([]capture.Result, 0, len(texts))}
	status := http.StatusOK
	for i, text := range texts {
		raw := utterance.NewRaw(text, at)
		if sourceID != "" {
			raw.SourceID = sourceID
			if len(texts) > 1 {
				raw.SourceID = fmt.Sprintf("%s-%d", sourceID, i)
			}
		}
		res := s.capturer.Capture(c.Request().Context(), raw)
		if res.Outcome == capture.OutcomeStorageFailure {
			status = http.StatusServiceUnavailable
		}
		resp.Results = append(resp.Results, res)
	}
	return c.JSON(status, resp)
}

func (s *Server) handleLedgerStats(c echo.Context) error {
	summary, err := s.stats.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// errorHandler renders structured errors and echo HTTP errors as ErrorResponse.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorBody{Code: string(errors.ErrInternal), Message: "internal error"}

		var vErr *errors.VocapError
		var hErr *echo.HTTPError
		switch {
		case stderrors.As(err, &vErr):
			status = vErr.Status
			body = ErrorBody{Code: string(vErr.Code), Message: vErr.Message, Details: vErr.Details}
		case stderrors.As(err, &hErr):
			status = hErr.Code
			body = ErrorBody{Code: http.StatusText(hErr.Code), Message: fmt.Sprint(hErr.Message)}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorResponse{Error: body})
		}
		if err != nil {
			e.Logger.Error(err)
		}
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
