/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the wire contract. Field names follow the game's original client
  contract (camelCase).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/guss/tap-arena/game"
	"github.com/guss/tap-arena/users"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Role     users.Role `json:"role"`
}

type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// ROUNDS
// =============================================================================

// RoundDTO represents a round in list responses.
type RoundDTO struct {
	ID         string           `json:"id"`
	StartDate  string           `json:"startDate"`
	EndDate    string           `json:"endDate"`
	CreatedAt  string           `json:"createdAt"`
	TotalScore int64            `json:"totalScore"`
	WinnerID   *string          `json:"winnerId"`
	Status     game.RoundStatus `json:"status"`
}

// RoundDetailDTO adds the caller-specific and winner fields.
type RoundDetailDTO struct {
	RoundDTO
	MyScore     int64 `json:"myScore"`
	WinnerScore int64 `json:"winnerScore"`
}

// TapResultDTO is the response to a tap.
type TapResultDTO struct {
	TapID        string `json:"tapId"`
	Score        int64  `json:"score"`
	MyTotalScore int64  `json:"myTotalScore"`
	TapNumber    int    `json:"tapNumber"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRoundDTO(round game.Round, status game.RoundStatus) RoundDTO {
	dto := RoundDTO{
		ID:         string(round.ID),
		StartDate:  round.StartDate.Format(time.RFC3339),
		EndDate:    round.EndDate.Format(time.RFC3339),
		CreatedAt:  round.CreatedAt.Format(time.RFC3339),
		TotalScore: round.TotalScore,
		Status:     status,
	}
	if round.WinnerID != nil {
		id := string(*round.WinnerID)
		dto.WinnerID = &id
	}
	return dto
}
