// Package achievement evaluates unlock predicates against session and
// portfolio state and applies rewards. It never creates or deletes sessions;
// the only session fields it touches are the capital credits for bonus cash.
package achievement

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/metrics"
	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/store"
)

// progress is the state an unlock predicate sees: the session counters plus
// the current portfolio snapshot.
type progress struct {
	session  *model.GameSession
	snapshot *model.PortfolioSnapshot
}

// predicate reports whether an achievement's unlock condition holds and
// returns the value to record as its current progress.
type predicate func(p progress, target decimal.Decimal) (decimal.Decimal, bool)

// predicates maps each achievement type to its unlock condition. Kinds are
// dispatched through this table rather than a conditional chain.
var predicates = map[model.AchievementType]predicate{
	model.AchievementFirstTrade: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		v := decimal.NewFromInt(int64(p.session.TotalTrades))
		return v, v.GreaterThanOrEqual(target)
	},
	model.AchievementProfitMilestone: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		return p.session.TotalPnL, p.session.TotalPnL.GreaterThanOrEqual(target)
	},
	model.AchievementPortfolioDiversity: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		if p.snapshot == nil {
			return decimal.Zero, false
		}
		v := decimal.NewFromInt(int64(len(p.snapshot.Positions)))
		return v, v.GreaterThanOrEqual(target)
	},
	model.AchievementTradingStreak: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		v := decimal.NewFromInt(int64(p.session.ProfitableTrades))
		return v, v.GreaterThanOrEqual(target)
	},
	model.AchievementAIFollower: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		v := decimal.NewFromInt(int64(p.session.AIFollowed))
		return v, v.GreaterThanOrEqual(target)
	},
	model.AchievementDiamondHands: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		v := decimal.NewFromInt(int64(p.session.DaysPlayed))
		return v, v.GreaterThanOrEqual(target)
	},
	model.AchievementDayTrader: func(p progress, target decimal.Decimal) (decimal.Decimal, bool) {
		v := decimal.NewFromInt(int64(p.session.TotalTrades))
		return v, v.GreaterThanOrEqual(target)
	},
}

// Engine evaluates and persists achievement unlocks for one session at a
// time.
type Engine struct {
	store store.Store
}

// NewEngine creates an achievement engine.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// CreateDefaults instantiates the template set for a new session.
func (e *Engine) CreateDefaults(ctx context.Context, sessionID string, now time.Time) error {
	return e.store.CreateAchievements(ctx, DefaultSet(sessionID, now))
}

// Evaluate checks every still-locked achievement for the session against
// the current counters and snapshot. Newly unlocked achievements are
// persisted, and any bonus cash is credited into the session's current
// capital and net worth; the caller is responsible for persisting the
// session itself. Already-unlocked achievements are never re-evaluated, so
// unlocks are monotonic and rewards apply exactly once.
func (e *Engine) Evaluate(ctx context.Context, session *model.GameSession, snapshot *model.PortfolioSnapshot) ([]model.Achievement, error) {
	locked, err := e.store.GetLockedAchievements(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	p := progress{session: session, snapshot: snapshot}
	now := time.Now().UTC()

	var unlocked []model.Achievement
	for i := range locked {
		a := locked[i]

		check, ok := predicates[a.Type]
		if !ok {
			continue
		}

		value, met := check(p, a.TargetValue)
		a.CurrentValue = value
		if !met {
			continue
		}

		a.Unlocked = true
		unlockedAt := now
		a.UnlockedAt = &unlockedAt

		if err := e.store.UpdateAchievement(ctx, &a); err != nil {
			return unlocked, err
		}

		if a.BonusCash.IsPositive() {
			session.CurrentCapital = session.CurrentCapital.Add(a.BonusCash)
			session.CurrentNetWorth = session.CurrentNetWorth.Add(a.BonusCash)
		}

		metrics.AchievementsUnlockedTotal.WithLabelValues(string(a.Type)).Inc()
		slog.Info("achievement unlocked",
			"session", session.ID,
			"name", a.Name,
			"type", string(a.Type),
			"bonus_cash", a.BonusCash.String(),
		)

		unlocked = append(unlocked, a)
	}

	return unlocked, nil
}
