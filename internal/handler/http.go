package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/etherroyale/minigames-api/internal/domain"
	"github.com/etherroyale/minigames-api/internal/service"
	"github.com/etherroyale/minigames-api/internal/websocket"
)

// Handler provides the HTTP handlers for the minigames API
type Handler struct {
	submissions  *service.SubmissionService
	leaderboards *service.LeaderboardService
	hub          *websocket.Hub
	adminAPIKey  string
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	submissions *service.SubmissionService,
	leaderboards *service.LeaderboardService,
	hub *websocket.Hub,
	adminAPIKey string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submissions:  submissions,
		leaderboards: leaderboards,
		hub:          hub,
		adminAPIKey:  adminAPIKey,
		logger:       logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SubmitGameRequest is the body of POST /game
type SubmitGameRequest struct {
	GameType  string  `json:"gameType"`
	Score     *int64  `json:"score"`
	NFTID     *uint64 `json:"nftId"`
	Signature string  `json:"signature"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint for live leaderboard updates
	r.Get("/ws", h.HandleWebSocket)

	// Game routes
	r.Route("/game", func(r chi.Router) {
		r.Post("/", h.SubmitGame)
		r.Get("/", h.GetActiveGame)
		r.With(h.requireAPIKey).Post("/config", h.SwitchGame)
	})

	// Day routes (administrative)
	r.Route("/day", func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Get("/", h.GetCurrentDay)
		r.Post("/new", h.StartNewDay)
		r.Get("/{dayID}/leaderboard", h.GetLeaderboard)
	})

	// NFT routes
	r.Route("/nft", func(r chi.Router) {
		r.Get("/{nftID}", h.GetPlayStatus)
		r.Get("/{nftID}/validate/{signature}", h.ValidateSignature)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID, x-api-key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards administrative endpoints with the shared x-api-key
// credential.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if h.adminAPIKey == "" ||
			subtle.ConstantTimeCompare([]byte(key), []byte(h.adminAPIKey)) != 1 {
			h.writeJSON(w, http.StatusUnauthorized, APIResponse{
				Success: false,
				Error:   "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a domain error onto a status code and writes it
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case domain.IsRejection(err):
		status = http.StatusForbidden
	case domain.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("request failed", "error", err)
		err = domain.ErrInternalError
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitGame handles POST /game: one daily score submission for an NFT.
func (h *Handler) SubmitGame(w http.ResponseWriter, r *http.Request) {
	var req SubmitGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.GameType == "" || req.Signature == "" || req.Score == nil || req.NFTID == nil || *req.Score < 0 {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	submission := domain.Submission{
		GameType:  domain.GameType(req.GameType),
		NFTID:     *req.NFTID,
		Score:     *req.Score,
		Signature: req.Signature,
		Origin: domain.Origin{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		},
	}

	if err := h.submissions.Submit(r.Context(), submission); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// GetActiveGame handles GET /game
func (h *Handler) GetActiveGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.leaderboards.ActiveGame(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]domain.GameType{"gameType": game})
}

// SwitchGame handles POST /game/config (admin)
func (h *Handler) SwitchGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewGameType string `json:"newGameType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewGameType == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.leaderboards.SwitchGame(r.Context(), domain.GameType(req.NewGameType)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

// GetCurrentDay handles GET /day (admin)
func (h *Handler) GetCurrentDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.leaderboards.CurrentDay(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]domain.DayID{"dayId": day})
}

// StartNewDay handles POST /day/new (admin)
func (h *Handler) StartNewDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DayID string `json:"dayId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DayID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.leaderboards.StartNewDay(r.Context(), domain.DayID(req.DayID)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

// GetLeaderboard handles GET /day/{dayID}/leaderboard (admin)
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	dayID := chi.URLParam(r, "dayID")
	if dayID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	entries, err := h.leaderboards.Leaderboard(r.Context(), domain.DayID(dayID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	h.writeSuccess(w, entries)
}

// GetPlayStatus handles GET /nft/{nftID}
func (h *Handler) GetPlayStatus(w http.ResponseWriter, r *http.Request) {
	nftID, err := strconv.ParseUint(chi.URLParam(r, "nftID"), 10, 64)
	if err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	status, err := h.submissions.PlayStatus(r.Context(), nftID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, status)
}

// ValidateSignature handles GET /nft/{nftID}/validate/{signature}
func (h *Handler) ValidateSignature(w http.ResponseWriter, r *http.Request) {
	nftID, err := strconv.ParseUint(chi.URLParam(r, "nftID"), 10, 64)
	if err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	signature := chi.URLParam(r, "signature")
	if signature == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	valid := h.submissions.ValidateSignature(r.Context(), signature, nftID)
	h.writeSuccess(w, map[string]bool{"valid": valid})
}

// clientIP extracts the caller's address; middleware.RealIP has already folded
// X-Forwarded-For / X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
