/*
Package users holds user records and credential checks.

PURPOSE:
  The game engine only consumes two facts about a caller: whether they are
  an admin (may create rounds) and whether they hold the exempt role (taps
  never score). This package owns those facts plus the thin login flow the
  original game uses: unknown usernames are registered on first login,
  known ones must present the right password.

ROLES:
  admin     May create rounds. Scores normally.
  nikita    The exempt role: participates mechanically, never accrues score.
  survivor  Everyone else.

  Role is fixed at first login, derived from the username itself - the
  game's rule, not a placeholder: "admin" becomes the admin, Nikita (in
  either alphabet) becomes the goose that cannot score.
*/
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/guss/tap-arena/game"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleNikita   Role = "nikita"
	RoleSurvivor Role = "survivor"
)

// IsAdmin reports whether the role may create rounds.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Exempt reports whether the role is excluded from scoring.
func (r Role) Exempt() bool { return r == RoleNikita }

// DetermineRole derives a new user's role from their username.
func DetermineRole(username string) Role {
	switch strings.ToLower(username) {
	case "admin":
		return RoleAdmin
	case "nikita", "никита":
		return RoleNikita
	default:
		return RoleSurvivor
	}
}

// =============================================================================
// USER RECORD
// =============================================================================

type User struct {
	ID           game.UserID
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Store persists user records. GetUserBy* return (nil, nil) when absent.
type Store interface {
	SaveUser(ctx context.Context, u User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id game.UserID) (*User, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials is returned when a known user presents the
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameTaken is returned by stores on a username collision.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUserNotFound is returned when a user identity does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// =============================================================================
// SERVICE
// =============================================================================

// Service implements login-or-register and user lookups.
type Service struct {
	Store Store

	// Clock supplies creation timestamps; overridable in tests.
	Clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Clock: time.Now}
}

// Login authenticates a username/password pair. Unknown usernames are
// registered on the spot with a role derived from the name; known users
// must match their stored bcrypt hash or get ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	user, err := s.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return s.register(ctx, username, password)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns a user by identity.
func (s *Service) Get(ctx context.Context, id game.UserID) (*User, error) {
	user, err := s.Store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) register(ctx context.Context, username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           game.UserID(uuid.NewString()),
		Username:     username,
		PasswordHash: string(hash),
		Role:         DetermineRole(username),
		CreatedAt:    s.Clock().UTC(),
	}

	if err := s.Store.SaveUser(ctx, user); err != nil {
		// Lost a race with a concurrent first login: use the stored record.
		if errors.Is(err, ErrUsernameTaken) {
			return s.Login(ctx, username, password)
		}
		return nil, err
	}
	return &user, nil
}
