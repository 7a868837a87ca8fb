// Package leaderboard records finalized win snapshots and serves ranked
// queries. Entries are immutable; one is written per won session, guarded by
// the session manager's terminal-transition check.
package leaderboard

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/store"
)

// DefaultLimit is the number of entries returned when no limit is given.
const DefaultLimit = 10

// Service owns leaderboard reads and the single write path.
type Service struct {
	store store.Store
}

// NewService creates a leaderboard service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// RecordWin snapshots a just-won session into an immutable entry. The
// session must already carry its completed_at stamp.
func (s *Service) RecordWin(ctx context.Context, session *model.GameSession, achievementsUnlocked int) (*model.LeaderboardEntry, error) {
	winRate := decimal.Zero
	if session.TotalTrades > 0 {
		winRate = decimal.NewFromInt(int64(session.ProfitableTrades)).
			Div(decimal.NewFromInt(int64(session.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	days := 0
	completedAt := session.StartedAt
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
		days = int(completedAt.Sub(session.StartedAt).Hours() / 24)
	}

	entry := &model.LeaderboardEntry{
		ID:                   uuid.New().String(),
		SessionID:            session.ID,
		PlayerName:           session.PlayerName,
		FinalROI:             session.CurrentROI,
		FinalNetWorth:        session.CurrentNetWorth,
		DaysToComplete:       days,
		TotalTrades:          session.TotalTrades,
		WinRate:              winRate,
		Mode:                 session.Mode,
		Difficulty:           session.Difficulty,
		AchievementsUnlocked: achievementsUnlocked,
		CompletedAt:          completedAt,
	}

	if err := s.store.InsertLeaderboardEntry(ctx, entry); err != nil {
		return nil, err
	}

	slog.Info("leaderboard entry recorded",
		"session", session.ID,
		"player", session.PlayerName,
		"final_roi", entry.FinalROI.String(),
		"days", days,
	)

	return entry, nil
}

// Top returns entries ranked by final ROI descending, ties broken by days
// to complete ascending, optionally filtered by mode. A non-positive limit
// selects DefaultLimit.
func (s *Service) Top(ctx context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := s.store.GetLeaderboard(ctx, mode, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}
