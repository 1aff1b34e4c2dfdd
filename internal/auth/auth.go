package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/gavel/internal/models"
	"github.com/mcdev12/gavel/internal/store"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid authentication token")

// ErrInvalidUsername is returned for login usernames shorter than two characters.
var ErrInvalidUsername = errors.New("username must be at least 2 characters")

// Identity is the verified bearer of a token.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Claims are the JWT claims carried in issued tokens.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and verifies bearer tokens and creates users lazily on first
// login. Usernames are trimmed and lowercased before lookup.
type Service struct {
	store  *store.Store
	secret []byte
	expiry time.Duration
	clock  clockwork.Clock
}

// NewService creates an auth service signing HS256 tokens with secret. Token
// lifetimes are issued and checked against clock.
func NewService(s *store.Store, secret string, expiry time.Duration, clock clockwork.Clock) *Service {
	return &Service{
		store:  s,
		secret: []byte(secret),
		expiry: expiry,
		clock:  clock,
	}
}

// Login finds or creates the user for username and returns a signed token.
func (s *Service) Login(username string) (string, *models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < 2 {
		return "", nil, ErrInvalidUsername
	}

	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			return "", nil, fmt.Errorf("failed to look up user: %w", err)
		}
		avatar := fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", username)
		user, err = s.store.CreateUser(username, avatar)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	now := s.clock.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

// Verify maps an opaque bearer token to its identity.
func (s *Service) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
