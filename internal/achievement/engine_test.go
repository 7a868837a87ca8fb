package achievement_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/achievement"
	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newSession() *model.GameSession {
	return &model.GameSession{
		ID:              "session-1",
		PlayerName:      "tester",
		Mode:            model.ModeROITarget,
		Status:          model.StatusActive,
		StartingCapital: d(5000),
		CurrentCapital:  d(5000),
		CurrentNetWorth: d(5000),
		StartedAt:       time.Now().UTC(),
	}
}

func newEngine(t *testing.T) (*achievement.Engine, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	eng := achievement.NewEngine(ms)
	if err := eng.CreateDefaults(context.Background(), "session-1", time.Now().UTC()); err != nil {
		t.Fatalf("create defaults: %v", err)
	}
	return eng, ms
}

func TestCreateDefaults(t *testing.T) {
	_, ms := newEngine(t)

	achievements, err := ms.GetAchievementsBySession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("get achievements: %v", err)
	}
	if len(achievements) != 8 {
		t.Fatalf("expected 8 default achievements, got %d", len(achievements))
	}
	for _, a := range achievements {
		if a.Unlocked {
			t.Errorf("%s should start locked", a.Name)
		}
		if a.UnlockedAt != nil {
			t.Errorf("%s should have no unlock timestamp", a.Name)
		}
	}
	// Template order is preserved through creation-time sorting.
	if achievements[0].Name != "First Steps" {
		t.Errorf("expected First Steps first, got %s", achievements[0].Name)
	}
}

func TestEvaluate_FirstTrade(t *testing.T) {
	eng, _ := newEngine(t)

	session := newSession()
	session.TotalTrades = 1

	unlocked, err := eng.Evaluate(context.Background(), session, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(unlocked) != 1 {
		t.Fatalf("expected 1 unlock, got %d", len(unlocked))
	}
	if unlocked[0].Type != model.AchievementFirstTrade {
		t.Errorf("expected first_trade, got %s", unlocked[0].Type)
	}
	if unlocked[0].UnlockedAt == nil {
		t.Error("unlock should carry a timestamp")
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	eng, ms := newEngine(t)
	ctx := context.Background()

	session := newSession()
	session.TotalTrades = 1

	if _, err := eng.Evaluate(ctx, session, nil); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// Re-evaluating the same state unlocks nothing new.
	unlocked, err := eng.Evaluate(ctx, session, nil)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unlocks must be monotonic, got %d repeats", len(unlocked))
	}

	// Even if the counter later regresses, the unlock stays.
	session.TotalTrades = 0
	eng.Evaluate(ctx, session, nil)

	achievements, _ := ms.GetAchievementsBySession(ctx, "session-1")
	for _, a := range achievements {
		if a.Type == model.AchievementFirstTrade && !a.Unlocked {
			t.Error("first_trade unlock was reverted")
		}
	}
}

func TestEvaluate_ProfitMilestoneBonusCash(t *testing.T) {
	eng, _ := newEngine(t)

	session := newSession()
	session.TotalPnL = d(600) // crosses Profit Maker's $500 target

	unlocked, err := eng.Evaluate(context.Background(), session, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var profitMaker *model.Achievement
	for i := range unlocked {
		if unlocked[i].Name == "Profit Maker" {
			profitMaker = &unlocked[i]
		}
		if unlocked[i].Name == "Big Winner" {
			t.Error("Big Winner requires $2000, should stay locked at $600")
		}
	}
	if profitMaker == nil {
		t.Fatal("Profit Maker should unlock at $600 PnL")
	}

	// The $100 bonus is credited to capital and net worth in place.
	if !session.CurrentCapital.Equal(d(5100)) {
		t.Errorf("expected capital 5100 after bonus, got %s", session.CurrentCapital)
	}
	if !session.CurrentNetWorth.Equal(d(5100)) {
		t.Errorf("expected net worth 5100 after bonus, got %s", session.CurrentNetWorth)
	}
}

func TestEvaluate_BonusAppliedOnce(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	session := newSession()
	session.TotalPnL = d(600)

	eng.Evaluate(ctx, session, nil)
	eng.Evaluate(ctx, session, nil)
	eng.Evaluate(ctx, session, nil)

	if !session.CurrentCapital.Equal(d(5100)) {
		t.Errorf("bonus cash must apply exactly once, got capital %s", session.CurrentCapital)
	}
}

func TestEvaluate_DiversityNeedsSnapshot(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	session := newSession()

	// Without a snapshot the diversity predicate cannot hold.
	unlocked, _ := eng.Evaluate(ctx, session, nil)
	if len(unlocked) != 0 {
		t.Fatalf("expected no unlocks, got %d", len(unlocked))
	}

	snapshot := &model.PortfolioSnapshot{
		Positions: make([]model.Position, 5),
	}
	unlocked, err := eng.Evaluate(ctx, session, snapshot)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].Type != model.AchievementPortfolioDiversity {
		t.Errorf("holding 5 symbols should unlock Diversified, got %+v", unlocked)
	}
}

func TestEvaluate_CounterPredicates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.GameSession)
		want   string
	}{
		{"ai follower", func(s *model.GameSession) { s.AIFollowed = 10 }, "AI Whisperer"},
		{"trading streak", func(s *model.GameSession) { s.ProfitableTrades = 5 }, "Hot Streak"},
		{"diamond hands", func(s *model.GameSession) { s.DaysPlayed = 7 }, "Diamond Hands"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, _ := newEngine(t)
			session := newSession()
			tc.mutate(session)

			unlocked, err := eng.Evaluate(context.Background(), session, nil)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}

			found := false
			for _, a := range unlocked {
				if a.Name == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %s to unlock", tc.want)
			}
		})
	}
}

func TestEvaluate_DayTraderNeedsTwentyTrades(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	session := newSession()
	session.TotalTrades = 20

	unlocked, err := eng.Evaluate(ctx, session, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	names := map[string]bool{}
	for _, a := range unlocked {
		names[a.Name] = true
	}
	// 20 trades satisfies both the first-trade and day-trader thresholds.
	if !names["First Steps"] || !names["Day Trader"] {
		t.Errorf("expected First Steps and Day Trader, got %v", names)
	}
}
