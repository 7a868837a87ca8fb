package achievement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
)

// template describes one default achievement. The set is pure data: adding
// an achievement means adding a row here and, if it introduces a new type,
// a predicate in predicates.go.
type template struct {
	Type        model.AchievementType
	Name        string
	Description string
	Icon        string
	TargetValue decimal.Decimal
	XPReward    int
	BonusCash   decimal.Decimal
}

var defaultTemplates = []template{
	{
		Type:        model.AchievementFirstTrade,
		Name:        "First Steps",
		Description: "Make your first trade",
		Icon:        "🎯",
		TargetValue: decimal.NewFromInt(1),
		XPReward:    100,
	},
	{
		Type:        model.AchievementProfitMilestone,
		Name:        "Profit Maker",
		Description: "Make $500 in profit",
		Icon:        "💰",
		TargetValue: decimal.NewFromInt(500),
		XPReward:    250,
		BonusCash:   decimal.NewFromInt(100),
	},
	{
		Type:        model.AchievementProfitMilestone,
		Name:        "Big Winner",
		Description: "Make $2000 in profit",
		Icon:        "🏆",
		TargetValue: decimal.NewFromInt(2000),
		XPReward:    500,
		BonusCash:   decimal.NewFromInt(250),
	},
	{
		Type:        model.AchievementPortfolioDiversity,
		Name:        "Diversified",
		Description: "Hold 5 different cryptocurrencies",
		Icon:        "🌈",
		TargetValue: decimal.NewFromInt(5),
		XPReward:    200,
	},
	{
		Type:        model.AchievementTradingStreak,
		Name:        "Hot Streak",
		Description: "Make 5 profitable trades",
		Icon:        "🔥",
		TargetValue: decimal.NewFromInt(5),
		XPReward:    300,
	},
	{
		Type:        model.AchievementAIFollower,
		Name:        "AI Whisperer",
		Description: "Follow 10 AI suggestions",
		Icon:        "🤖",
		TargetValue: decimal.NewFromInt(10),
		XPReward:    200,
	},
	{
		Type:        model.AchievementDiamondHands,
		Name:        "Diamond Hands",
		Description: "Play for 7 consecutive days",
		Icon:        "💎",
		TargetValue: decimal.NewFromInt(7),
		XPReward:    400,
	},
	{
		Type:        model.AchievementDayTrader,
		Name:        "Day Trader",
		Description: "Make 20 trades",
		Icon:        "⚡",
		TargetValue: decimal.NewFromInt(20),
		XPReward:    350,
	},
}

// DefaultSet instantiates the full achievement template set for a session,
// all locked.
func DefaultSet(sessionID string, now time.Time) []model.Achievement {
	achievements := make([]model.Achievement, 0, len(defaultTemplates))
	for i, tpl := range defaultTemplates {
		achievements = append(achievements, model.Achievement{
			ID:          uuid.New().String(),
			SessionID:   sessionID,
			Type:        tpl.Type,
			Name:        tpl.Name,
			Description: tpl.Description,
			Icon:        tpl.Icon,
			TargetValue: tpl.TargetValue,
			XPReward:    tpl.XPReward,
			BonusCash:   tpl.BonusCash,
			// Preserve template order for stores that sort by creation time.
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return achievements
}
