// Package store defines the persistence interface for the game engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/coinquest/game-engine/internal/model"
)

// ErrNotFound is returned by lookups that match no row. GetActiveSession
// returns it when no session currently holds the active status.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Immutable trade ledger ---

	// InsertTradeEvent appends an immutable trade record.
	InsertTradeEvent(ctx context.Context, event *model.TradeEvent) error

	// GetTradeEventsBySymbol returns all trades for a symbol, oldest first.
	GetTradeEventsBySymbol(ctx context.Context, symbol string) ([]model.TradeEvent, error)

	// GetTradeEvents returns the whole ledger, oldest first.
	GetTradeEvents(ctx context.Context) ([]model.TradeEvent, error)

	// GetRecentTradeEvents returns up to limit trades, newest first.
	GetRecentTradeEvents(ctx context.Context, limit int) ([]model.TradeEvent, error)

	// ClearTradeEvents drops the whole ledger. Only start-new-game calls
	// this; the ledger is otherwise append-only.
	ClearTradeEvents(ctx context.Context) error

	// --- Game sessions ---

	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *model.GameSession) error

	// GetActiveSession returns the session with active status, or
	// ErrNotFound when there is none.
	GetActiveSession(ctx context.Context) (*model.GameSession, error)

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*model.GameSession, error)

	// UpdateSession overwrites a session's mutable fields.
	UpdateSession(ctx context.Context, session *model.GameSession) error

	// PauseActiveSessions transitions every active session to paused.
	PauseActiveSessions(ctx context.Context) error

	// --- Achievements ---

	// CreateAchievements persists the template set for a new session.
	CreateAchievements(ctx context.Context, achievements []model.Achievement) error

	// GetAchievementsBySession returns all achievements for a session.
	GetAchievementsBySession(ctx context.Context, sessionID string) ([]model.Achievement, error)

	// GetLockedAchievements returns the still-locked achievements for a
	// session.
	GetLockedAchievements(ctx context.Context, sessionID string) ([]model.Achievement, error)

	// UpdateAchievement overwrites an achievement's unlock state.
	UpdateAchievement(ctx context.Context, achievement *model.Achievement) error

	// --- Leaderboard ---

	// InsertLeaderboardEntry appends an immutable win snapshot.
	InsertLeaderboardEntry(ctx context.Context, entry *model.LeaderboardEntry) error

	// GetLeaderboard returns entries ordered by final ROI descending, ties
	// broken by days to complete ascending, optionally filtered by mode
	// (empty string means all modes), truncated to limit.
	GetLeaderboard(ctx context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error)
}
