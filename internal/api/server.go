// Package api exposes the read-only HTTP interface over the scraped data.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/club"
	"github.com/Zetabytes/fussball-de-api/internal/config"
	"github.com/Zetabytes/fussball-de-api/internal/crawler"
	"github.com/Zetabytes/fussball-de-api/internal/metrics"
)

// Crawler is the scraping surface the handlers fall back to when a request
// cannot be answered from the prewarmed aggregate.
type Crawler interface {
	club.Source
	SearchClubs(ctx context.Context, query string) ([]crawler.ClubSearchResult, error)
	GameByID(ctx context.Context, gameID string) (*crawler.Game, error)
}

// Server wires HTTP handlers to the crawler, the aggregate builder and the
// prewarmed store.
type Server struct {
	router  chi.Router
	crawler Crawler
	clubSvc *club.Service
	store   *club.Store
	cfg     config.Config
	log     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(c Crawler, clubSvc *club.Service, store *club.Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawler: c,
		clubSvc: clubSvc,
		store:   store,
		cfg:     cfg,
		log:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))

		r.Get("/search/clubs", s.searchClubs)
		r.Route("/club/{club_id}", func(r chi.Router) {
			r.Get("/", s.getFullClubInfo)
			r.Get("/teams", s.getClubTeams)
			r.Get("/info", s.getClubInfo)
			r.Get("/next_games", s.getClubNextGames)
			r.Get("/prev_games", s.getClubPrevGames)
		})
		r.Route("/team/{team_id}", func(r chi.Router) {
			r.Get("/", s.getTeamInfo)
			r.Get("/table", s.getTeamTable)
			r.Get("/next_games", s.getTeamNextGames)
			r.Get("/prev_games", s.getTeamPrevGames)
		})
		r.Get("/game/{game_id}", s.getGame)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "fussball-de-api",
		"docs":    "/api",
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) searchClubs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if len(query) < 3 {
		writeError(w, http.StatusBadRequest, "query must be at least 3 characters")
		return
	}
	results, err := s.crawler.SearchClubs(r.Context(), query)
	if err != nil {
		s.log.Warn("club search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// getFullClubInfo serves the prewarmed aggregate when the requested club is
// the prewarm target, and builds one live otherwise.
func (s *Server) getFullClubInfo(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "club_id")
	if info, ok := s.store.Get(clubID); ok {
		writeJSON(w, http.StatusOK, info)
		return
	}
	info, err := s.clubSvc.BuildFullClubInfo(r.Context(), clubID)
	if err != nil {
		s.log.Warn("full club info build failed",
			zap.String("club_id", clubID), zap.Error(err))
		writeJSON(w, http.StatusOK, &crawler.FullClubInfo{
			ClubPrevGames: []crawler.Game{},
			ClubNextGames: []crawler.Game{},
			Teams:         []crawler.TeamWithDetails{},
		})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getClubTeams(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "club_id")
	teams, err := s.crawler.ClubTeams(r.Context(), clubID)
	if err != nil {
		s.log.Warn("club teams fetch failed",
			zap.String("club_id", clubID), zap.Error(err))
		writeJSON(w, http.StatusOK, []crawler.Team{})
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) getClubInfo(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "club_id")
	info, err := s.clubSvc.BuildClubInfo(r.Context(), clubID)
	if err != nil {
		s.log.Warn("club info build failed",
			zap.String("club_id", clubID), zap.Error(err))
		writeJSON(w, http.StatusOK, &crawler.ClubInfo{
			Teams:     []crawler.Team{},
			PrevGames: []crawler.Game{},
			NextGames: []crawler.Game{},
		})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getClubNextGames(w http.ResponseWriter, r *http.Request) {
	s.writeGames(w, r, s.crawler.ClubNextGames, chi.URLParam(r, "club_id"))
}

func (s *Server) getClubPrevGames(w http.ResponseWriter, r *http.Request) {
	s.writeGames(w, r, s.crawler.ClubPrevGames, chi.URLParam(r, "club_id"))
}

func (s *Server) getTeamNextGames(w http.ResponseWriter, r *http.Request) {
	s.writeGames(w, r, s.crawler.TeamNextGames, chi.URLParam(r, "team_id"))
}

func (s *Server) getTeamPrevGames(w http.ResponseWriter, r *http.Request) {
	s.writeGames(w, r, s.crawler.TeamPrevGames, chi.URLParam(r, "team_id"))
}

// writeGames degrades a failed fixture fetch to an empty list so dashboards
// polling the API keep rendering.
func (s *Server) writeGames(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, id string) ([]crawler.Game, error),
	id string,
) {
	games, err := fetch(r.Context(), id)
	if err != nil {
		s.log.Warn("games fetch failed", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusOK, []crawler.Game{})
		return
	}
	if games == nil {
		games = []crawler.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) getTeamInfo(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "team_id")
	if team, ok := s.store.FindTeam(teamID); ok {
		writeJSON(w, http.StatusOK, &crawler.TeamInfo{
			Table:     team.Table,
			PrevGames: team.PrevGames,
			NextGames: team.NextGames,
		})
		return
	}
	info, err := s.clubSvc.BuildTeamInfo(r.Context(), teamID)
	if err != nil {
		s.log.Warn("team info build failed",
			zap.String("team_id", teamID), zap.Error(err))
		writeJSON(w, http.StatusOK, &crawler.TeamInfo{
			PrevGames: []crawler.Game{},
			NextGames: []crawler.Game{},
		})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getTeamTable(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "team_id")
	if team, ok := s.store.FindTeam(teamID); ok && team.Table != nil {
		writeJSON(w, http.StatusOK, team.Table)
		return
	}
	table, err := s.crawler.TeamTable(r.Context(), teamID)
	if err != nil {
		s.log.Warn("team table fetch failed",
			zap.String("team_id", teamID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "table fetch failed")
		return
	}
	if table == nil {
		writeError(w, http.StatusNotFound, "no table for team")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game_id")
	if game, ok := s.store.FindGame(gameID); ok {
		writeJSON(w, http.StatusOK, game)
		return
	}
	game, err := s.crawler.GameByID(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
