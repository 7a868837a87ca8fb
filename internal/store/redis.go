package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinquest/game-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertTradeEvent(ctx context.Context, event *model.TradeEvent) error {
	if err := s.primary.InsertTradeEvent(ctx, event); err != nil {
		return err
	}
	s.rdb.Del(ctx, symbolEventsKey(event.Symbol))
	return nil
}

func (s *CachedStore) ClearTradeEvents(ctx context.Context) error {
	if err := s.primary.ClearTradeEvents(ctx); err != nil {
		return err
	}
	// Per-symbol event caches are keyed individually; flush via pattern scan.
	iter := s.rdb.Scan(ctx, 0, "events:*", 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
	return nil
}

func (s *CachedStore) CreateSession(ctx context.Context, session *model.GameSession) error {
	if err := s.primary.CreateSession(ctx, session); err != nil {
		return err
	}
	s.cacheSession(ctx, session)
	return nil
}

func (s *CachedStore) UpdateSession(ctx context.Context, session *model.GameSession) error {
	if err := s.primary.UpdateSession(ctx, session); err != nil {
		return err
	}
	// Invalidate; next read re-populates. A session leaving active status
	// must not linger in the active-session cache.
	s.rdb.Del(ctx, activeSessionKey())
	return nil
}

func (s *CachedStore) PauseActiveSessions(ctx context.Context) error {
	if err := s.primary.PauseActiveSessions(ctx); err != nil {
		return err
	}
	s.rdb.Del(ctx, activeSessionKey())
	return nil
}

func (s *CachedStore) UpdateAchievement(ctx context.Context, achievement *model.Achievement) error {
	return s.primary.UpdateAchievement(ctx, achievement)
}

func (s *CachedStore) InsertLeaderboardEntry(ctx context.Context, entry *model.LeaderboardEntry) error {
	if err := s.primary.InsertLeaderboardEntry(ctx, entry); err != nil {
		return err
	}
	iter := s.rdb.Scan(ctx, 0, "leaderboard:*", 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetTradeEventsBySymbol(ctx context.Context, symbol string) ([]model.TradeEvent, error) {
	data, err := s.rdb.Get(ctx, symbolEventsKey(symbol)).Bytes()
	if err == nil {
		var events []model.TradeEvent
		if json.Unmarshal(data, &events) == nil {
			return events, nil
		}
	}

	// Cache miss: read from primary.
	events, err := s.primary.GetTradeEventsBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, symbolEventsKey(symbol), data, s.ttl)
	}
	return events, nil
}

func (s *CachedStore) GetActiveSession(ctx context.Context) (*model.GameSession, error) {
	data, err := s.rdb.Get(ctx, activeSessionKey()).Bytes()
	if err == nil {
		var session model.GameSession
		if json.Unmarshal(data, &session) == nil {
			return &session, nil
		}
	}

	session, err := s.primary.GetActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSession(ctx, session)
	return session, nil
}

func (s *CachedStore) GetLeaderboard(ctx context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error) {
	key := leaderboardKey(mode, limit)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var entries []model.LeaderboardEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.GetLeaderboard(ctx, mode, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetTradeEvents(ctx context.Context) ([]model.TradeEvent, error) {
	return s.primary.GetTradeEvents(ctx)
}

func (s *CachedStore) GetRecentTradeEvents(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	return s.primary.GetRecentTradeEvents(ctx, limit)
}

func (s *CachedStore) GetSession(ctx context.Context, id string) (*model.GameSession, error) {
	return s.primary.GetSession(ctx, id)
}

func (s *CachedStore) CreateAchievements(ctx context.Context, achievements []model.Achievement) error {
	return s.primary.CreateAchievements(ctx, achievements)
}

func (s *CachedStore) GetAchievementsBySession(ctx context.Context, sessionID string) ([]model.Achievement, error) {
	return s.primary.GetAchievementsBySession(ctx, sessionID)
}

func (s *CachedStore) GetLockedAchievements(ctx context.Context, sessionID string) ([]model.Achievement, error) {
	return s.primary.GetLockedAchievements(ctx, sessionID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSession(ctx context.Context, session *model.GameSession) {
	if session.Status != model.StatusActive {
		return
	}
	if data, err := json.Marshal(session); err == nil {
		s.rdb.Set(ctx, activeSessionKey(), data, s.ttl)
	}
}

func symbolEventsKey(symbol string) string { return fmt.Sprintf("events:%s", symbol) }
func activeSessionKey() string             { return "session:active" }

func leaderboardKey(mode model.GameMode, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", mode, limit)
}
