package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/engine"
	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/pricing"
	"github.com/coinquest/game-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeOracle serves prices from a fixed map; unknown symbols fail the way
// the real client does.
type fakeOracle struct {
	prices map[string]decimal.Decimal
}

func (f *fakeOracle) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, pricing.ErrPriceUnavailable
	}
	return price, nil
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*engine.Service, *store.MemoryStore, *fakeOracle, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{
		"BTC": d(50000),
		"ETH": d(2000),
	}}
	svc := engine.NewService(ms, oracle, nil, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/trade/buy", svc.HandleBuy)
	r.Post("/api/v1/trade/sell", svc.HandleSell)
	r.Get("/api/v1/portfolio", svc.HandleGetPortfolio)
	r.Get("/api/v1/transactions", svc.HandleGetTransactions)
	r.Post("/api/v1/game/start", svc.HandleStartGame)
	r.Get("/api/v1/game/stats", svc.HandleGameStats)
	r.Get("/api/v1/game/achievements", svc.HandleGetAchievements)
	r.Post("/api/v1/game/ai-interaction", svc.HandleAIInteraction)
	r.Get("/api/v1/leaderboard", svc.HandleGetLeaderboard)

	return svc, ms, oracle, r
}

func doPost(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Trade execution tests ---

func TestBuy(t *testing.T) {
	_, ms, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{
		Symbol:    "btc",
		USDAmount: d(1000),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var event model.TradeEvent
	json.Unmarshal(w.Body.Bytes(), &event)

	if event.ID == "" {
		t.Error("expected non-empty event id")
	}
	if event.Symbol != "BTC" {
		t.Errorf("symbol should be normalized to BTC, got %q", event.Symbol)
	}
	// $1000 at $50000 = 0.02 BTC.
	if !event.Amount.Equal(d(0.02)) {
		t.Errorf("expected amount 0.02, got %s", event.Amount)
	}
	if event.Kind != model.TradeBuy {
		t.Errorf("expected kind buy, got %s", event.Kind)
	}

	events, _ := ms.GetTradeEvents(context.Background())
	if len(events) != 1 {
		t.Fatalf("expected 1 ledger event, got %d", len(events))
	}
}

func TestBuy_InvalidAmount(t *testing.T) {
	_, ms, _, router := newTestEnv(t)

	for _, amount := range []decimal.Decimal{decimal.Zero, d(-50)} {
		w := doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{
			Symbol:    "BTC",
			USDAmount: amount,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("amount %s: expected 400, got %d", amount, w.Code)
		}
	}

	events, _ := ms.GetTradeEvents(context.Background())
	if len(events) != 0 {
		t.Errorf("rejected trades must not touch the ledger, got %d events", len(events))
	}
}

func TestBuy_EmptySymbol(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{
		Symbol:    "   ",
		USDAmount: d(100),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestBuy_PriceUnavailable(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{
		Symbol:    "NOPE",
		USDAmount: d(100),
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestSell_InsufficientHoldings(t *testing.T) {
	_, ms, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade/sell", engine.TradeRequest{
		Symbol:    "BTC",
		USDAmount: d(100),
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	events, _ := ms.GetTradeEvents(context.Background())
	if len(events) != 0 {
		t.Errorf("rejected sell must not touch the ledger, got %d events", len(events))
	}
}

func TestSell_ExactPosition(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(1000)})

	// Selling the whole position at the same price is allowed; the
	// sufficiency check is >=, not >.
	w := doPost(t, router, "/api/v1/trade/sell", engine.TradeRequest{Symbol: "BTC", USDAmount: d(1000)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var event model.TradeEvent
	json.Unmarshal(w.Body.Bytes(), &event)
	if !event.Amount.Equal(d(-0.02)) {
		t.Errorf("sell amount should be -0.02, got %s", event.Amount)
	}
	if event.Kind != model.TradeSell {
		t.Errorf("expected kind sell, got %s", event.Kind)
	}
}

func TestSell_PartialThenPortfolioDropsSymbol(t *testing.T) {
	svc, _, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "ETH", USDAmount: d(2000)})
	doPost(t, router, "/api/v1/trade/sell", engine.TradeRequest{Symbol: "ETH", USDAmount: d(2000)})

	snapshot, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(snapshot.Positions) != 0 {
		t.Errorf("fully-sold symbol should not be reported, got %d positions", len(snapshot.Positions))
	}
	if !snapshot.OverallROI.IsZero() {
		t.Errorf("overall ROI should be exactly zero with nothing invested, got %s", snapshot.OverallROI)
	}
}

// --- Portfolio tests through the service ---

func TestPortfolio_ValuationScenario(t *testing.T) {
	svc, _, oracle, router := newTestEnv(t)

	// Buy $1000 of BTC at $50,000.
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(1000)})

	// Price rises to $60,000.
	oracle.prices["BTC"] = d(60000)

	snapshot, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}

	if len(snapshot.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(snapshot.Positions))
	}
	p := snapshot.Positions[0]
	if !p.Amount.Equal(d(0.02)) {
		t.Errorf("expected 0.02 BTC, got %s", p.Amount)
	}
	if !p.AvgCostBasis.Equal(d(50000)) {
		t.Errorf("expected avg cost 50000, got %s", p.AvgCostBasis)
	}
	if !p.CurrentValue.Equal(d(1200)) {
		t.Errorf("expected current value 1200, got %s", p.CurrentValue)
	}
	if !p.ROI.Equal(d(20)) {
		t.Errorf("expected ROI 20%%, got %s", p.ROI)
	}
	if !snapshot.OverallROI.Equal(d(20)) {
		t.Errorf("expected overall ROI 20%%, got %s", snapshot.OverallROI)
	}
}

func TestPortfolio_EmptyLedger(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/portfolio")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snapshot model.PortfolioSnapshot
	json.Unmarshal(w.Body.Bytes(), &snapshot)

	if len(snapshot.Positions) != 0 {
		t.Errorf("expected no positions, got %d", len(snapshot.Positions))
	}
	if !snapshot.TotalInvested.IsZero() || !snapshot.TotalCurrent.IsZero() || !snapshot.OverallROI.IsZero() {
		t.Errorf("expected zero totals, got invested=%s current=%s roi=%s",
			snapshot.TotalInvested, snapshot.TotalCurrent, snapshot.OverallROI)
	}
}

func TestTransactions_NewestFirstWithLimit(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(100)})
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "ETH", USDAmount: d(100)})
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(100)})

	w := doGet(t, router, "/api/v1/transactions?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var events []model.TradeEvent
	json.Unmarshal(w.Body.Bytes(), &events)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Symbol != "BTC" || events[1].Symbol != "ETH" {
		t.Errorf("expected newest-first [BTC ETH], got [%s %s]", events[0].Symbol, events[1].Symbol)
	}
}

// --- Game lifecycle tests ---

func TestStartGame_Defaults(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/game/start", engine.StartGameRequest{})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var session model.GameSession
	json.Unmarshal(w.Body.Bytes(), &session)

	if session.PlayerName != "Anonymous Trader" {
		t.Errorf("expected default player name, got %q", session.PlayerName)
	}
	if session.Mode != model.ModeROITarget {
		t.Errorf("expected default mode roi_target, got %s", session.Mode)
	}
	if session.Difficulty != engine.DifficultyNormal {
		t.Errorf("expected default difficulty Normal, got %s", session.Difficulty)
	}
	if !session.StartingCapital.Equal(d(5000)) {
		t.Errorf("expected starting capital 5000, got %s", session.StartingCapital)
	}
	if !session.TargetROI.Equal(d(100)) {
		t.Errorf("expected target ROI 100, got %s", session.TargetROI)
	}
	if session.Status != model.StatusActive {
		t.Errorf("expected active status, got %s", session.Status)
	}
}

func TestStartGame_DifficultyScaling(t *testing.T) {
	tests := []struct {
		difficulty string
		capital    decimal.Decimal
		targetROI  decimal.Decimal
		multiplier decimal.Decimal
	}{
		{engine.DifficultyEasy, d(7500), d(80), d(1.2)},
		{engine.DifficultyNormal, d(5000), d(100), d(1)},
		{engine.DifficultyHard, d(3000), d(150), d(0.8)},
		{engine.DifficultyExpert, d(2000), d(200), d(0.6)},
	}

	for _, tc := range tests {
		t.Run(tc.difficulty, func(t *testing.T) {
			svc, _, _, _ := newTestEnv(t)

			session, err := svc.StartNewGame(context.Background(), "p", model.ModeROITarget, tc.difficulty)
			if err != nil {
				t.Fatalf("start game: %v", err)
			}
			if !session.StartingCapital.Equal(tc.capital) {
				t.Errorf("capital: expected %s, got %s", tc.capital, session.StartingCapital)
			}
			if !session.TargetROI.Equal(tc.targetROI) {
				t.Errorf("target ROI: expected %s, got %s", tc.targetROI, session.TargetROI)
			}
			if !session.BonusMultiplier.Equal(tc.multiplier) {
				t.Errorf("multiplier: expected %s, got %s", tc.multiplier, session.BonusMultiplier)
			}
		})
	}
}

func TestStartGame_UnknownMode(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/game/start", engine.StartGameRequest{Mode: "speedrun"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStartGame_PausesPreviousAndClearsLedger(t *testing.T) {
	svc, ms, _, router := newTestEnv(t)
	ctx := context.Background()

	first, err := svc.StartNewGame(ctx, "first", model.ModeROITarget, "")
	if err != nil {
		t.Fatalf("start first game: %v", err)
	}
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(500)})

	second, err := svc.StartNewGame(ctx, "second", model.ModeNetWorthTarget, "")
	if err != nil {
		t.Fatalf("start second game: %v", err)
	}

	events, _ := ms.GetTradeEvents(ctx)
	if len(events) != 0 {
		t.Errorf("new game should start with an empty ledger, got %d events", len(events))
	}

	paused, err := ms.GetSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first session: %v", err)
	}
	if paused.Status != model.StatusPaused {
		t.Errorf("previous session should be paused, got %s", paused.Status)
	}

	active, err := ms.GetActiveSession(ctx)
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active session should be the new one")
	}
}

func TestGameStats_NoActiveGame(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/game/stats")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGameStats_TracksProgress(t *testing.T) {
	svc, _, oracle, router := newTestEnv(t)
	ctx := context.Background()

	if _, err := svc.StartNewGame(ctx, "trader", model.ModeROITarget, ""); err != nil {
		t.Fatalf("start game: %v", err)
	}

	oracle.prices["BTC"] = d(100)
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(1000)})

	// Price rises 50%: ROI 50 of target 100 → progress 50%.
	oracle.prices["BTC"] = d(150)

	w := doGet(t, router, "/api/v1/game/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats engine.GameStats
	json.Unmarshal(w.Body.Bytes(), &stats)

	if !stats.Session.CurrentROI.Equal(d(50)) {
		t.Errorf("expected current ROI 50, got %s", stats.Session.CurrentROI)
	}
	if !stats.ProgressPercentage.Equal(d(50)) {
		t.Errorf("expected progress 50%%, got %s", stats.ProgressPercentage)
	}
	if stats.IsWinning {
		t.Error("should not be winning at 50% of target")
	}
	if stats.Session.TotalTrades != 1 {
		t.Errorf("expected 1 trade, got %d", stats.Session.TotalTrades)
	}
	if stats.AchievementsTotal != 8 {
		t.Errorf("expected 8 achievements, got %d", stats.AchievementsTotal)
	}
}

// --- Win detection tests ---

func TestWin_ExactlyOnce(t *testing.T) {
	svc, _, oracle, _ := newTestEnv(t)
	ctx := context.Background()

	session, err := svc.StartNewGame(ctx, "winner", model.ModeROITarget, "")
	if err != nil {
		t.Fatalf("start game: %v", err)
	}

	oracle.prices["BTC"] = d(100)
	if _, err := svc.Buy(ctx, "BTC", d(1000)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// Price up 2.5x: ROI 150% crosses the 100% target.
	oracle.prices["BTC"] = d(250)
	if err := svc.UpdateProgress(ctx); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	entries, err := svc.Leaderboard(ctx, "", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 leaderboard entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.SessionID != session.ID {
		t.Errorf("entry should reference the won session")
	}
	if !entry.FinalROI.Equal(d(150)) {
		t.Errorf("expected final ROI 150, got %s", entry.FinalROI)
	}
	if entry.Mode != model.ModeROITarget {
		t.Errorf("expected mode roi_target, got %s", entry.Mode)
	}

	// Further progress refreshes must not promote the session again.
	if err := svc.UpdateProgress(ctx); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if err := svc.UpdateProgress(ctx); err != nil {
		t.Fatalf("third update: %v", err)
	}
	entries, _ = svc.Leaderboard(ctx, "", 10)
	if len(entries) != 1 {
		t.Errorf("win must be recorded exactly once, got %d entries", len(entries))
	}
}

func TestWin_TerminalStatus(t *testing.T) {
	svc, ms, oracle, _ := newTestEnv(t)
	ctx := context.Background()

	session, _ := svc.StartNewGame(ctx, "winner", model.ModeROITarget, "")

	oracle.prices["BTC"] = d(100)
	svc.Buy(ctx, "BTC", d(1000))
	oracle.prices["BTC"] = d(300)
	svc.UpdateProgress(ctx)

	won, err := ms.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if won.Status != model.StatusWon {
		t.Fatalf("expected status won, got %s", won.Status)
	}
	if won.CompletedAt == nil {
		t.Error("won session should carry a completion timestamp")
	}

	// Won is terminal: the session no longer counts as active.
	if _, err := ms.GetActiveSession(ctx); err == nil {
		t.Error("won session must not be returned as active")
	}
}

func TestWin_SurvivalModeNeverWins(t *testing.T) {
	svc, ms, oracle, _ := newTestEnv(t)
	ctx := context.Background()

	session, err := svc.StartNewGame(ctx, "survivor", model.ModeSurvival, "")
	if err != nil {
		t.Fatalf("start game: %v", err)
	}

	oracle.prices["BTC"] = d(100)
	svc.Buy(ctx, "BTC", d(1000))
	oracle.prices["BTC"] = d(1000)
	svc.UpdateProgress(ctx)

	got, _ := ms.GetSession(ctx, session.ID)
	if got.Status != model.StatusActive {
		t.Errorf("survival mode has no win condition, got status %s", got.Status)
	}

	entries, _ := svc.Leaderboard(ctx, "", 10)
	if len(entries) != 0 {
		t.Errorf("survival session must never reach the leaderboard, got %d entries", len(entries))
	}
}

// --- Session counters ---

func TestProfitableTradeCounter(t *testing.T) {
	svc, ms, oracle, _ := newTestEnv(t)
	ctx := context.Background()

	session, _ := svc.StartNewGame(ctx, "p", model.ModeNetWorthTarget, "")

	oracle.prices["BTC"] = d(100)
	svc.Buy(ctx, "BTC", d(1000)) // 10 coins at 100

	oracle.prices["BTC"] = d(200)
	if _, err := svc.Sell(ctx, "BTC", d(400)); err != nil { // 2 coins above avg cost
		t.Fatalf("sell: %v", err)
	}

	got, _ := ms.GetSession(ctx, session.ID)
	if got.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", got.TotalTrades)
	}
	if got.ProfitableTrades != 1 {
		t.Errorf("only the sell above cost basis is profitable, got %d", got.ProfitableTrades)
	}
}

func TestRecordAIInteraction(t *testing.T) {
	svc, ms, _, router := newTestEnv(t)
	ctx := context.Background()

	// No active game: recording is a silent no-op.
	w := doPost(t, router, "/api/v1/game/ai-interaction", engine.AIInteractionRequest{Followed: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without a game, got %d", w.Code)
	}

	session, _ := svc.StartNewGame(ctx, "p", model.ModeROITarget, "")

	doPost(t, router, "/api/v1/game/ai-interaction", engine.AIInteractionRequest{Followed: true})
	doPost(t, router, "/api/v1/game/ai-interaction", engine.AIInteractionRequest{Followed: true})
	doPost(t, router, "/api/v1/game/ai-interaction", engine.AIInteractionRequest{Followed: false})

	got, _ := ms.GetSession(ctx, session.ID)
	if got.AIFollowed != 2 {
		t.Errorf("expected 2 followed, got %d", got.AIFollowed)
	}
	if got.AIIgnored != 1 {
		t.Errorf("expected 1 ignored, got %d", got.AIIgnored)
	}
}

// --- Achievement integration ---

func TestFirstTradeUnlocksAchievement(t *testing.T) {
	svc, _, _, router := newTestEnv(t)
	ctx := context.Background()

	svc.StartNewGame(ctx, "p", model.ModeROITarget, "")
	doPost(t, router, "/api/v1/trade/buy", engine.TradeRequest{Symbol: "BTC", USDAmount: d(100)})

	w := doGet(t, router, "/api/v1/game/achievements")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var achievements []model.Achievement
	json.Unmarshal(w.Body.Bytes(), &achievements)

	var firstSteps *model.Achievement
	for i := range achievements {
		if achievements[i].Name == "First Steps" {
			firstSteps = &achievements[i]
		}
	}
	if firstSteps == nil {
		t.Fatal("First Steps achievement missing from default set")
	}
	if !firstSteps.Unlocked {
		t.Error("First Steps should unlock on the first trade")
	}
	if firstSteps.UnlockedAt == nil {
		t.Error("unlocked achievement should carry a timestamp")
	}
}
