package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coinquest/game-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps and slices. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	ledger       []model.TradeEvent
	sessions     map[string]*model.GameSession
	achievements map[string]*model.Achievement
	leaderboard  []model.LeaderboardEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*model.GameSession),
		achievements: make(map[string]*model.Achievement),
	}
}

// --- Trade ledger ---

func (s *MemoryStore) InsertTradeEvent(_ context.Context, event *model.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *event)
	return nil
}

func (s *MemoryStore) GetTradeEventsBySymbol(_ context.Context, symbol string) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEvent
	for _, e := range s.ledger {
		if e.Symbol == symbol {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTradeEvents(_ context.Context) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.TradeEvent, len(s.ledger))
	copy(result, s.ledger)
	return result, nil
}

func (s *MemoryStore) GetRecentTradeEvents(_ context.Context, limit int) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEvent
	for i := len(s.ledger) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.ledger[i])
	}
	return result, nil
}

func (s *MemoryStore) ClearTradeEvents(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = nil
	return nil
}

// --- Game sessions ---

func (s *MemoryStore) CreateSession(_ context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	// Store a copy to avoid external mutation.
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStore) GetActiveSession(_ context.Context) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.Status == model.StatusActive {
			copied := *session
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("session %s: %w", session.ID, ErrNotFound)
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStore) PauseActiveSessions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.Status == model.StatusActive {
			session.Status = model.StatusPaused
		}
	}
	return nil
}

// --- Achievements ---

func (s *MemoryStore) CreateAchievements(_ context.Context, achievements []model.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range achievements {
		copied := achievements[i]
		s.achievements[copied.ID] = &copied
	}
	return nil
}

func (s *MemoryStore) GetAchievementsBySession(_ context.Context, sessionID string) ([]model.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Achievement
	for _, a := range s.achievements {
		if a.SessionID == sessionID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) GetLockedAchievements(_ context.Context, sessionID string) ([]model.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Achievement
	for _, a := range s.achievements {
		if a.SessionID == sessionID && !a.Unlocked {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateAchievement(_ context.Context, achievement *model.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.achievements[achievement.ID]; !ok {
		return fmt.Errorf("achievement %s: %w", achievement.ID, ErrNotFound)
	}
	copied := *achievement
	s.achievements[achievement.ID] = &copied
	return nil
}

// --- Leaderboard ---

func (s *MemoryStore) InsertLeaderboardEntry(_ context.Context, entry *model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaderboard = append(s.leaderboard, *entry)
	return nil
}

func (s *MemoryStore) GetLeaderboard(_ context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LeaderboardEntry
	for _, e := range s.leaderboard {
		if mode != "" && e.Mode != mode {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].FinalROI.Equal(result[j].FinalROI) {
			return result[i].FinalROI.GreaterThan(result[j].FinalROI)
		}
		return result[i].DaysToComplete < result[j].DaysToComplete
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
