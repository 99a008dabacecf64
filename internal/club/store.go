package club

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Zetabytes/fussball-de-api/internal/crawler"
)

// Store holds the prewarmed aggregate for the single configured club. One
// slot is deliberate: prewarming targets one club, and on-demand requests for
// other clubs are served live instead of growing memory unboundedly.
type Store struct {
	mu   sync.RWMutex
	id   string
	info *crawler.FullClubInfo
}

// NewStore returns an empty aggregate store.
func NewStore() *Store {
	return &Store{}
}

// Replace atomically swaps in a freshly built aggregate.
func (s *Store) Replace(clubID string, info *crawler.FullClubInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = clubID
	s.info = info
}

// Get returns the stored aggregate for clubID, if present.
func (s *Store) Get(clubID string) (*crawler.FullClubInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil || s.id != clubID {
		return nil, false
	}
	return s.info, true
}

// FindTeam looks a team up inside the stored aggregate.
func (s *Store) FindTeam(teamID string) (*crawler.TeamWithDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil, false
	}
	for i := range s.info.Teams {
		if s.info.Teams[i].ID == teamID {
			return &s.info.Teams[i], true
		}
	}
	return nil, false
}

// FindGame searches the stored aggregate for a game, checking the club-level
// fixture windows first and then every team's.
func (s *Store) FindGame(gameID string) (*crawler.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil, false
	}
	if g := findGame(s.info.ClubPrevGames, gameID); g != nil {
		return g, true
	}
	if g := findGame(s.info.ClubNextGames, gameID); g != nil {
		return g, true
	}
	for i := range s.info.Teams {
		if g := findGame(s.info.Teams[i].PrevGames, gameID); g != nil {
			return g, true
		}
		if g := findGame(s.info.Teams[i].NextGames, gameID); g != nil {
			return g, true
		}
	}
	return nil, false
}

func findGame(games []crawler.Game, gameID string) *crawler.Game {
	for i := range games {
		if games[i].ID == gameID {
			return &games[i]
		}
	}
	return nil
}

// SnapshotJSON serializes the stored aggregate for persistence.
func (s *Store) SnapshotJSON(clubID string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil || s.id != clubID {
		return nil, false
	}
	raw, err := json.Marshal(s.info)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// RestoreJSON loads a persisted aggregate back into the store.
func (s *Store) RestoreJSON(clubID string, raw json.RawMessage) error {
	var info crawler.FullClubInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("decode aggregate: %w", err)
	}
	s.Replace(clubID, &info)
	return nil
}
