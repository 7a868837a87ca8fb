// Package model defines the core domain types shared across the game engine.
// All monetary values and coin quantities use shopspring/decimal — never
// float64 for money.
package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TradeKind is the direction of a trade event.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// GameMode selects the win condition for a session.
type GameMode string

const (
	ModeROITarget      GameMode = "roi_target"
	ModeNetWorthTarget GameMode = "net_worth_target"
	ModeTimeChallenge  GameMode = "time_challenge"
	ModeSurvival       GameMode = "survival"
)

// GameStatus is the lifecycle state of a session. Won and lost are terminal.
type GameStatus string

const (
	StatusActive GameStatus = "active"
	StatusWon    GameStatus = "won"
	StatusLost   GameStatus = "lost"
	StatusPaused GameStatus = "paused"
)

// AchievementType tags the unlock predicate an achievement evaluates.
type AchievementType string

const (
	AchievementFirstTrade         AchievementType = "first_trade"
	AchievementProfitMilestone    AchievementType = "profit_milestone"
	AchievementPortfolioDiversity AchievementType = "portfolio_diversity"
	AchievementTradingStreak      AchievementType = "trading_streak"
	AchievementAIFollower         AchievementType = "ai_follower"
	AchievementDiamondHands       AchievementType = "diamond_hands"
	AchievementDayTrader          AchievementType = "day_trader"
)

// TradeEvent is an immutable record of a buy or sell.
// Once appended to the ledger these are never modified or deleted.
// Amount is signed: positive for buys, negative for sells.
type TradeEvent struct {
	ID        string          `json:"id" db:"id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	PriceUSD  decimal.Decimal `json:"price_usd" db:"price_usd"`
	Kind      TradeKind       `json:"kind" db:"kind"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Position is the derived net holding for one symbol. Never stored;
// recomputed from the ledger on demand.
type Position struct {
	Symbol        string          `json:"symbol"`
	Amount        decimal.Decimal `json:"amount"`         // Σ signed trade amounts
	AvgCostBasis  decimal.Decimal `json:"avg_cost_basis"` // mean of per-trade prices
	InvestedValue decimal.Decimal `json:"invested_value"` // Σ amount × price, signed
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"` // amount × current price
	ROI           decimal.Decimal `json:"roi"`           // percent vs avg cost
}

// PortfolioSnapshot is the derived whole-portfolio view.
type PortfolioSnapshot struct {
	Positions     []Position      `json:"coins"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalCurrent  decimal.Decimal `json:"total_current"`
	OverallROI    decimal.Decimal `json:"overall_roi"`
	TopGainer     *Position       `json:"top_gainer"`
	TopLoser      *Position       `json:"top_loser"`
}

// GameSession is one playthrough of a challenge. At most one session is
// active at a time; won and lost are terminal and never revert.
type GameSession struct {
	ID         string     `json:"id" db:"id"`
	PlayerName string     `json:"player_name" db:"player_name"`
	Mode       GameMode   `json:"mode" db:"mode"`
	Status     GameStatus `json:"status" db:"status"`

	StartingCapital decimal.Decimal `json:"starting_capital" db:"starting_capital"`
	CurrentCapital  decimal.Decimal `json:"current_capital" db:"current_capital"`

	TargetROI      decimal.Decimal `json:"target_roi" db:"target_roi"`
	TargetNetWorth decimal.Decimal `json:"target_net_worth" db:"target_net_worth"`
	TargetDays     int             `json:"target_days" db:"target_days"`

	CurrentROI       decimal.Decimal `json:"current_roi" db:"current_roi"`
	CurrentNetWorth  decimal.Decimal `json:"current_net_worth" db:"current_net_worth"`
	DaysPlayed       int             `json:"days_played" db:"days_played"`
	TotalTrades      int             `json:"total_trades" db:"total_trades"`
	ProfitableTrades int             `json:"profitable_trades" db:"profitable_trades"`

	HighestValue decimal.Decimal `json:"highest_value" db:"highest_value"`
	LowestValue  decimal.Decimal `json:"lowest_value" db:"lowest_value"`
	TotalPnL     decimal.Decimal `json:"total_pnl" db:"total_pnl"`
	AIFollowed   int             `json:"ai_followed" db:"ai_followed"`
	AIIgnored    int             `json:"ai_ignored" db:"ai_ignored"`

	Difficulty      string          `json:"difficulty" db:"difficulty"`
	BonusMultiplier decimal.Decimal `json:"bonus_multiplier" db:"bonus_multiplier"`

	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	LastPlayedAt time.Time  `json:"last_played_at" db:"last_played_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
}

// WinProgress returns percent progress towards the win condition, capped
// at 100. Survival mode has no target, so progress stays at zero.
func (s *GameSession) WinProgress() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	var pct decimal.Decimal
	switch s.Mode {
	case ModeROITarget:
		if s.TargetROI.IsPositive() {
			pct = s.CurrentROI.Div(s.TargetROI).Mul(hundred)
		}
	case ModeNetWorthTarget:
		if s.TargetNetWorth.IsPositive() {
			pct = s.CurrentNetWorth.Div(s.TargetNetWorth).Mul(hundred)
		}
	case ModeTimeChallenge:
		if s.TargetDays > 0 {
			pct = decimal.NewFromInt(int64(s.DaysPlayed)).
				Div(decimal.NewFromInt(int64(s.TargetDays))).Mul(hundred)
		}
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// WinConditionMet reports whether the mode-specific win predicate holds.
func (s *GameSession) WinConditionMet() bool {
	switch s.Mode {
	case ModeROITarget:
		return s.CurrentROI.GreaterThanOrEqual(s.TargetROI)
	case ModeNetWorthTarget:
		return s.CurrentNetWorth.GreaterThanOrEqual(s.TargetNetWorth)
	case ModeTimeChallenge:
		return s.DaysPlayed >= s.TargetDays && s.CurrentROI.IsPositive()
	}
	return false
}

// WinDescription renders the win condition for presentation and advice
// context.
func (s *GameSession) WinDescription() string {
	switch s.Mode {
	case ModeROITarget:
		return "Reach " + s.TargetROI.String() + "% ROI"
	case ModeNetWorthTarget:
		return "Reach $" + s.TargetNetWorth.StringFixed(0) + " net worth"
	case ModeTimeChallenge:
		return "Stay profitable for " + strconv.Itoa(s.TargetDays) + " days"
	case ModeSurvival:
		return "Survive as long as you can"
	}
	return "Unknown challenge"
}

// Achievement is a milestone predicate over session and portfolio state.
// Unlocked is monotonic: once true it is never reset.
type Achievement struct {
	ID          string          `json:"id" db:"id"`
	SessionID   string          `json:"session_id" db:"session_id"`
	Type        AchievementType `json:"type" db:"type"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Icon        string          `json:"icon" db:"icon"`

	TargetValue  decimal.Decimal `json:"target_value" db:"target_value"`
	CurrentValue decimal.Decimal `json:"current_value" db:"current_value"`
	Unlocked     bool            `json:"unlocked" db:"unlocked"`

	XPReward  int             `json:"xp_reward" db:"xp_reward"`
	BonusCash decimal.Decimal `json:"bonus_cash" db:"bonus_cash"`

	UnlockedAt *time.Time `json:"unlocked_at" db:"unlocked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// LeaderboardEntry is an immutable snapshot of a won session's final
// metrics, written exactly once when the session transitions to won.
type LeaderboardEntry struct {
	ID        string `json:"id" db:"id"`
	SessionID string `json:"session_id" db:"session_id"`

	PlayerName     string          `json:"player_name" db:"player_name"`
	FinalROI       decimal.Decimal `json:"final_roi" db:"final_roi"`
	FinalNetWorth  decimal.Decimal `json:"final_net_worth" db:"final_net_worth"`
	DaysToComplete int             `json:"days_to_complete" db:"days_to_complete"`
	TotalTrades    int             `json:"total_trades" db:"total_trades"`
	WinRate        decimal.Decimal `json:"win_rate" db:"win_rate"`

	Mode                 GameMode  `json:"mode" db:"mode"`
	Difficulty           string    `json:"difficulty" db:"difficulty"`
	AchievementsUnlocked int       `json:"achievements_unlocked" db:"achievements_unlocked"`
	CompletedAt          time.Time `json:"completed_at" db:"completed_at"`
}
