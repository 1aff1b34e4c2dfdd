package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/models"
)

// snapshot is the on-disk representation of the full store state.
type snapshot struct {
	Auctions []*models.Auction `json:"auctions"`
	Users    []*models.User    `json:"users"`
	SavedAt  int64             `json:"savedAt"`
}

// Save writes the full store state to path as JSON. Durability is decoupled
// from the commit path: bids are never blocked on disk I/O.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Auctions: make([]*models.Auction, 0, len(s.auctions)),
		Users:    make([]*models.User, 0, len(s.users)),
		SavedAt:  s.clock.Now().UnixMilli(),
	}
	for _, a := range s.auctions {
		snap.Auctions = append(snap.Auctions, a.Clone())
	}
	for _, u := range s.users {
		cp := *u
		snap.Users = append(snap.Users, &cp)
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	log.Info().
		Int("auctions", len(snap.Auctions)).
		Int("users", len(snap.Users)).
		Str("path", path).
		Msg("snapshot saved")
	return nil
}

// Load replaces the store state from a snapshot file. A missing file is not
// an error; the caller seeds fresh data instead.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}

	s.mu.Lock()
	s.auctions = make(map[string]*models.Auction, len(snap.Auctions))
	for _, a := range snap.Auctions {
		if a.Bids == nil {
			a.Bids = []models.Bid{}
		}
		s.auctions[a.ID] = a
	}
	s.users = make(map[string]*models.User, len(snap.Users))
	for _, u := range snap.Users {
		s.users[u.ID] = u
	}
	s.mu.Unlock()

	log.Info().
		Int("auctions", len(snap.Auctions)).
		Int("users", len(snap.Users)).
		Str("path", path).
		Msg("snapshot loaded")
	return nil
}

// RunSnapshotter periodically saves the store until the context is cancelled.
// The final shutdown snapshot is the caller's responsibility, so teardown can
// sequence it after the server stops accepting bids.
func (s *Store) RunSnapshotter(ctx context.Context, path string, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.Save(path); err != nil {
				log.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}
