package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/gavel/internal/models"
)

// ErrAuctionNotFound is returned when an auction id has no entry.
var ErrAuctionNotFound = errors.New("auction not found")

// ErrUserNotFound is returned when a user lookup misses.
var ErrUserNotFound = errors.New("user not found")

// Store owns the authoritative in-memory auction and user state. All reads
// return deep copies so callers can never mutate shared state outside the
// per-auction commit path.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*models.Auction
	users    map[string]*models.User

	clock clockwork.Clock
}

// NewStore creates an empty store.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		auctions: make(map[string]*models.Auction),
		users:    make(map[string]*models.User),
		clock:    clock,
	}
}

// GetAuction returns a copy of the auction with the given id.
func (s *Store) GetAuction(id string) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, ErrAuctionNotFound)
	}
	return auction.Clone(), nil
}

// GetAllAuctions returns copies of every auction, sorted by end time
// (soonest first).
func (s *Store) GetAllAuctions() []*models.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auctions := make([]*models.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		auctions = append(auctions, a.Clone())
	}
	sort.Slice(auctions, func(i, j int) bool {
		return auctions[i].EndTime < auctions[j].EndTime
	})
	return auctions
}

// UpdateAuction replaces the stored auction state for the given id.
func (s *Store) UpdateAuction(id string, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[id]; !ok {
		return fmt.Errorf("auction %s: %w", id, ErrAuctionNotFound)
	}
	s.auctions[id] = auction.Clone()
	return nil
}

// CreateAuction registers a new auction. A missing id is assigned, bids start
// empty and createdAt is stamped from the store clock.
func (s *Store) CreateAuction(auction *models.Auction) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := auction.Clone()
	if a.ID == "" {
		a.ID = fmt.Sprintf("auction_%s", uuid.New().String())
	}
	if a.Bids == nil {
		a.Bids = []models.Bid{}
	}
	a.CreatedAt = s.clock.Now().UnixMilli()

	if _, exists := s.auctions[a.ID]; exists {
		return nil, fmt.Errorf("auction %s already exists", a.ID)
	}
	s.auctions[a.ID] = a
	return a.Clone(), nil
}

// AuctionCount returns the number of auctions held.
func (s *Store) AuctionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.auctions)
}

// GetUser returns a copy of the user with the given id.
func (s *Store) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	cp := *user
	return &cp, nil
}

// GetUserByUsername returns the user with the given username, if any.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrUserNotFound)
}

// CreateUser registers a new user with a fresh id.
func (s *Store) CreateUser(username, avatar string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &models.User{
		ID:        fmt.Sprintf("user_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:12]),
		Username:  username,
		Avatar:    avatar,
		CreatedAt: s.clock.Now().UnixMilli(),
	}
	s.users[user.ID] = user

	cp := *user
	return &cp, nil
}

// UserCount returns the number of users held.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
