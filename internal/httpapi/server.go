package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"groundwire/internal/db"
	"groundwire/internal/globaltime"
	"groundwire/internal/incident"
	"groundwire/internal/ingest"
	"groundwire/internal/model"
	"groundwire/internal/ratelimit"
)

// Options holds listener and policy settings for the API server.
type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	AdminKeyHash       string
}

// ArticleStore is the article read surface the handlers need.
type ArticleStore interface {
	GetRecent(ctx context.Context, hoursBack int) ([]model.Article, error)
	GetByID(ctx context.Context, articleUUID string) (*model.Article, error)
	Search(ctx context.Context, query string, limit int) ([]model.Article, error)
}

// IncidentService covers the interactive incident path.
type IncidentService interface {
	Submit(ctx context.Context, sub incident.Submission) (model.Incident, error)
	List(ctx context.Context, hoursBack int, typeFilter string) ([]model.Incident, error)
	Grouped(ctx context.Context, hoursBack int) ([][]model.Incident, error)
	Upvote(ctx context.Context, id string) (int, error)
	Verify(ctx context.Context, id string, verified bool) error
}

// SuggestionStore persists and lists channel suggestions.
type SuggestionStore interface {
	Save(ctx context.Context, suggestion model.Suggestion) error
	List(ctx context.Context, limit int) ([]model.Suggestion, error)
}

// StatsSource aggregates service counters.
type StatsSource interface {
	QueryServiceStats(ctx context.Context) (*db.ServiceStats, error)
}

// Refresher runs one ingestion cycle on demand.
type Refresher interface {
	Refresh(ctx context.Context) (ingest.Result, error)
}

// Pinger reports backing-store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limiters carries the per-surface rate limiters. Nil members disable
// enforcement for that surface.
type Limiters struct {
	Search      ratelimit.Limiter
	Incidents   ratelimit.Limiter
	Upvotes     ratelimit.Limiter
	Suggestions ratelimit.Limiter
}

// Deps wires the server to its collaborators. Pool fills in the store-backed
// members that are left nil.
type Deps struct {
	Pool        *db.Pool
	Articles    ArticleStore
	Incidents   IncidentService
	Suggestions SuggestionStore
	Stats       StatsSource
	Refresher   Refresher
	Limiters    Limiters
}

type Server struct {
	health      Pinger
	articles    ArticleStore
	incidents   IncidentService
	suggestions SuggestionStore
	stats       StatsSource
	refresher   Refresher
	limiters    Limiters
	logger      zerolog.Logger
	opts        Options

	refreshMu sync.Mutex
}

func NewServer(deps Deps, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	corsOrigins := opts.CORSAllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	server := &Server{
		articles:    deps.Articles,
		incidents:   deps.Incidents,
		suggestions: deps.Suggestions,
		stats:       deps.Stats,
		refresher:   deps.Refresher,
		limiters:    deps.Limiters,
		logger:      logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: corsOrigins,
			AdminKeyHash:       strings.TrimSpace(opts.AdminKeyHash),
		},
	}

	if deps.Pool != nil {
		server.health = deps.Pool
		if server.articles == nil {
			server.articles = db.NewArticleRepo(deps.Pool)
		}
		if server.suggestions == nil {
			server.suggestions = db.NewSuggestionRepo(deps.Pool)
		}
		if server.stats == nil {
			server.stats = deps.Pool
		}
	}

	return server
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", adminKeyHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	searchLimit := ratelimit.Middleware(s.limiters.Search, s.logger)
	incidentLimit := ratelimit.Middleware(s.limiters.Incidents, s.logger)
	upvoteLimit := ratelimit.Middleware(s.limiters.Upvotes, s.logger)
	suggestionLimit := ratelimit.Middleware(s.limiters.Suggestions, s.logger)
	adminOnly := s.requireAdminKey()

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/articles", s.handleArticles)
	api.GET("/articles/:article_id", s.handleArticleDetail)
	api.GET("/articles/:article_id/preview", s.handleArticlePreview, searchLimit)
	api.GET("/search", s.handleSearch, searchLimit)
	api.GET("/incidents", s.handleIncidents)
	api.GET("/incidents/grouped", s.handleIncidentsGrouped)
	api.POST("/incidents", s.handleSubmitIncident, incidentLimit)
	api.POST("/incidents/:incident_id/upvote", s.handleUpvoteIncident, upvoteLimit)
	api.POST("/incidents/:incident_id/verify", s.handleVerifyIncident, adminOnly)
	api.POST("/suggestions", s.handleSubmitSuggestion, suggestionLimit)
	api.GET("/suggestions", s.handleListSuggestions, adminOnly)
	api.POST("/refresh", s.handleRefresh, adminOnly)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("groundwire api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("groundwire api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]any{
		"service": "groundwire",
		"time":    globaltime.UTC(),
	}

	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("health ping failed")
			resp["database"] = "down"
			return c.JSON(http.StatusServiceUnavailable, jsendResponse{
				Status:  "error",
				Message: "Database unreachable",
				Code:    http.StatusServiceUnavailable,
				Data:    resp,
			})
		}
		resp["database"] = "up"
	}

	return success(c, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	if s.stats == nil {
		return internalError(c, "Stats are not available")
	}

	stats, err := s.stats.QueryServiceStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query service stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleRefresh(c echo.Context) error {
	if s.refresher == nil {
		return fail(c, http.StatusServiceUnavailable, "Refresh is not available", nil)
	}

	if !s.refreshMu.TryLock() {
		return failConflict(c, "A refresh is already running", nil)
	}
	defer s.refreshMu.Unlock()

	result, err := s.refresher.Refresh(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("manual refresh failed")
		return internalError(c, "Refresh failed")
	}

	return success(c, result)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func decodeJSONBody(c echo.Context, dst any) error {
	if c == nil || c.Request() == nil || c.Request().Body == nil {
		return fmt.Errorf("request body is required")
	}

	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("must be a valid JSON object")
	}
	return nil
}

func isUUID(value string) bool {
	if len(value) != 36 {
		return false
	}

	for idx, ch := range value {
		switch idx {
		case 8, 13, 18, 23:
			if ch != '-' {
				return false
			}
			continue
		}

		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
