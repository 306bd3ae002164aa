/*
handlers.go - HTTP API handlers for the tap arena

PURPOSE:
  Exposes the round/tap engine via REST. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login        Login or first-time register
    GET    /api/auth/me           Current user

  Rounds:
    GET    /api/rounds            List rounds with derived status
    POST   /api/rounds            Create round (admin only)
    GET    /api/rounds/{id}       Round detail (resolves winner lazily)
    POST   /api/rounds/{id}/tap   Tap

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Round not ACTIVE (cooldown / finished)
  - 401: Bad credentials or token
  - 403: Non-admin round creation
  - 404: Round not found
  - 409: Serialization conflict that survived internal retries
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guss/tap-arena/auth"
	"github.com/guss/tap-arena/game"
	"github.com/guss/tap-arena/users"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Rounds *game.RoundService
	Ledger *game.TapLedger
	Users  *users.Service
	Tokens *auth.Issuer
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(rounds *game.RoundService, ledger *game.TapLedger, userSvc *users.Service, tokens *auth.Issuer) *Handler {
	return &Handler{
		Rounds: rounds,
		Ledger: ledger,
		Users:  userSvc,
		Tokens: tokens,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login authenticates (or first-time registers) a user and returns a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	user, err := h.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  UserDTO{ID: string(user.ID), Username: user.Username, Role: user.Role},
	})
}

// Me returns the calling user.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	user, err := h.Users.Get(r.Context(), game.UserID(claims.UserID))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	writeJSON(w, http.StatusOK, UserDTO{ID: string(user.ID), Username: user.Username, Role: user.Role})
}

// =============================================================================
// ROUND HANDLERS
// =============================================================================

// ListRounds returns all rounds with their derived status.
// GET /api/rounds
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Rounds.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rounds", err)
		return
	}

	dtos := make([]RoundDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toRoundDTO(s.Round, s.Status)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRound schedules a new round. Admin only.
// POST /api/rounds
func (h *Handler) CreateRound(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	summary, err := h.Rounds.Create(r.Context(), claims.Role.IsAdmin())
	if err != nil {
		writeGameError(w, err, "Failed to create round")
		return
	}

	writeJSON(w, http.StatusCreated, toRoundDTO(summary.Round, summary.Status))
}

// GetRound returns the detail view for the calling user; reading a finished
// round without a winner resolves one as a side effect.
// GET /api/rounds/{id}
func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	roundID := game.RoundID(chi.URLParam(r, "id"))

	detail, err := h.Rounds.Get(r.Context(), roundID, game.UserID(claims.UserID))
	if err != nil {
		writeGameError(w, err, "Failed to get round")
		return
	}

	writeJSON(w, http.StatusOK, RoundDetailDTO{
		RoundDTO:    toRoundDTO(detail.Round, detail.Status),
		MyScore:     detail.MyScore,
		WinnerScore: detail.WinnerScore,
	})
}

// Tap admits one tap for the calling user.
// POST /api/rounds/{id}/tap
func (h *Handler) Tap(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	roundID := game.RoundID(chi.URLParam(r, "id"))

	result, err := h.Ledger.Tap(r.Context(), roundID, game.UserID(claims.UserID), claims.Role.Exempt())
	if err != nil {
		writeGameError(w, err, "Failed to tap")
		return
	}

	writeJSON(w, http.StatusOK, TapResultDTO{
		TapID:        string(result.TapID),
		Score:        result.Score,
		MyTotalScore: result.MyScore,
		TapNumber:    result.TapNumber,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeGameError maps engine error classes to HTTP status codes.
func writeGameError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, game.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, "Round not found", nil)
	case errors.Is(err, game.ErrRoundNotStarted):
		writeError(w, http.StatusBadRequest, "Round not started", nil)
	case errors.Is(err, game.ErrRoundFinished):
		writeError(w, http.StatusBadRequest, "Round already ended", nil)
	case errors.Is(err, game.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only an admin can do that", nil)
	case errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, "Busy, please retry", nil)
	default:
		writeError(w, http.StatusInternalServerError, fallback, err)
	}
}
