// Package engine owns the portfolio valuation and game progression logic:
// trade application against the append-only ledger, session lifecycle,
// achievement evaluation, and leaderboard promotion — plus the HTTP handlers
// that expose them.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/achievement"
	"github.com/coinquest/game-engine/internal/advisor"
	"github.com/coinquest/game-engine/internal/leaderboard"
	"github.com/coinquest/game-engine/internal/metrics"
	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/pricing"
	"github.com/coinquest/game-engine/internal/portfolio"
	"github.com/coinquest/game-engine/internal/store"
)

// Service handles trades and game progression. A mutex serializes every
// state-mutating operation so the sell-sufficiency check can never
// interleave with another append, and a win is detected exactly once
// (single-instance; for horizontal scaling, replace with distributed
// locking or database-level optimistic concurrency).
type Service struct {
	store        store.Store
	oracle       pricing.Oracle
	achievements *achievement.Engine
	board        *leaderboard.Service
	advisor      *advisor.Generator // optional; nil disables /advice
	wsHub        *WSHub             // optional WebSocket hub for event broadcasts
	mu           sync.Mutex
}

// NewService creates the engine service. Pass nil for adv and hub when
// advice or WebSocket broadcasting is not needed.
func NewService(st store.Store, oracle pricing.Oracle, adv *advisor.Generator, hub *WSHub) *Service {
	return &Service{
		store:        st,
		oracle:       oracle,
		achievements: achievement.NewEngine(st),
		board:        leaderboard.NewService(st),
		advisor:      adv,
		wsHub:        hub,
	}
}

// --- Trade application ---

// Buy converts usdAmount into coins at the oracle price and appends a buy
// event. There is no upper bound beyond the amount being positive.
func (s *Service) Buy(ctx context.Context, symbol string, usdAmount decimal.Decimal) (*model.TradeEvent, error) {
	return s.applyTrade(ctx, symbol, usdAmount, model.TradeBuy)
}

// Sell converts usdAmount into coins at the oracle price and appends a sell
// event, after verifying the position covers it. The price used for the
// sufficiency check is the same price recorded on the event — no re-fetch
// between check and append.
func (s *Service) Sell(ctx context.Context, symbol string, usdAmount decimal.Decimal) (*model.TradeEvent, error) {
	return s.applyTrade(ctx, symbol, usdAmount, model.TradeSell)
}

func (s *Service) applyTrade(ctx context.Context, symbol string, usdAmount decimal.Decimal, kind model.TradeKind) (*model.TradeEvent, error) {
	start := time.Now()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		metrics.TradesRejectedTotal.WithLabelValues("invalid_symbol").Inc()
		return nil, ErrInvalidSymbol
	}
	if !usdAmount.IsPositive() {
		metrics.TradesRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}

	// Resolve the price before entering the critical section; the oracle is
	// the only call here that suspends on I/O.
	price, err := s.oracle.GetPrice(ctx, symbol)
	if err != nil {
		metrics.TradesRejectedTotal.WithLabelValues("price_unavailable").Inc()
		return nil, err
	}

	coinAmount := usdAmount.Div(price)

	// Serialize trade execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	realizedProfit := decimal.Zero
	signedAmount := coinAmount

	if kind == model.TradeSell {
		events, err := s.store.GetTradeEventsBySymbol(ctx, symbol)
		if err != nil {
			return nil, err
		}
		net := portfolio.NetPosition(events, symbol)
		if coinAmount.GreaterThan(net) {
			metrics.TradesRejectedTotal.WithLabelValues("insufficient_holdings").Inc()
			return nil, ErrInsufficientHoldings
		}
		avgCost := portfolio.AvgCostBasis(events, symbol)
		realizedProfit = price.Sub(avgCost).Mul(coinAmount)
		signedAmount = coinAmount.Neg()
	}

	event := &model.TradeEvent{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Amount:    signedAmount,
		PriceUSD:  price,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.InsertTradeEvent(ctx, event); err != nil {
		return nil, err
	}

	snapshot, err := s.snapshotLocked(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.updateProgressLocked(ctx, snapshot, event, realizedProfit); err != nil {
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(string(kind)).Inc()
	metrics.TradeLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	slog.Info("trade executed",
		"trade_id", event.ID,
		"symbol", symbol,
		"kind", string(kind),
		"usd_amount", usdAmount.String(),
		"coin_amount", coinAmount.String(),
		"price", price.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade_executed",
			Symbol:   symbol,
			Kind:     string(kind),
			Amount:   coinAmount.String(),
			PriceUSD: price.String(),
		})
	}

	return event, nil
}

// snapshotLocked recomputes the portfolio from the full ledger. Caller must
// hold s.mu.
func (s *Service) snapshotLocked(ctx context.Context) (*model.PortfolioSnapshot, error) {
	events, err := s.store.GetTradeEvents(ctx)
	if err != nil {
		return nil, err
	}
	return portfolio.Compute(ctx, events, s.oracle)
}

// --- Game session lifecycle ---

// StartNewGame pauses any active session, clears the ledger for a fresh
// financial slate, and creates a new active session with the full default
// achievement set.
func (s *Service) StartNewGame(ctx context.Context, playerName string, mode model.GameMode, difficulty string) (*model.GameSession, error) {
	if playerName == "" {
		playerName = "Anonymous Trader"
	}
	if mode == "" {
		mode = model.ModeROITarget
	}
	if !validMode(mode) {
		return nil, errors.New("unknown game mode: " + string(mode))
	}
	if difficulty == "" {
		difficulty = DifficultyNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.PauseActiveSessions(ctx); err != nil {
		return nil, err
	}
	if err := s.store.ClearTradeEvents(ctx); err != nil {
		return nil, err
	}

	cfg := resolveGameConfig(mode, difficulty)
	now := time.Now().UTC()

	session := &model.GameSession{
		ID:              uuid.New().String(),
		PlayerName:      playerName,
		Mode:            mode,
		Status:          model.StatusActive,
		StartingCapital: cfg.StartingCapital,
		CurrentCapital:  cfg.StartingCapital,
		TargetROI:       cfg.TargetROI,
		TargetNetWorth:  cfg.TargetNetWorth,
		TargetDays:      cfg.TargetDays,
		CurrentNetWorth: cfg.StartingCapital,
		HighestValue:    cfg.StartingCapital,
		LowestValue:     cfg.StartingCapital,
		Difficulty:      difficulty,
		BonusMultiplier: cfg.BonusMultiplier,
		StartedAt:       now,
		LastPlayedAt:    now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if err := s.achievements.CreateDefaults(ctx, session.ID, now); err != nil {
		return nil, err
	}

	metrics.GamesStartedTotal.WithLabelValues(string(mode), difficulty).Inc()
	slog.Info("game started",
		"session", session.ID,
		"player", playerName,
		"mode", string(mode),
		"difficulty", difficulty,
		"starting_capital", cfg.StartingCapital.String(),
	)

	return session, nil
}

// UpdateProgress recomputes the portfolio and folds it into the active
// session. A no-op when no session is active.
func (s *Service) UpdateProgress(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.snapshotLocked(ctx)
	if err != nil {
		return err
	}
	return s.updateProgressLocked(ctx, snapshot, nil, decimal.Zero)
}

// updateProgressLocked folds a portfolio snapshot (and optionally a just-
// applied trade) into the active session: counters, watermarks, win
// detection, leaderboard promotion, achievement evaluation. Caller must
// hold s.mu. A missing active session is a no-op, never an error: portfolio
// tracking exists without a game.
func (s *Service) updateProgressLocked(ctx context.Context, snapshot *model.PortfolioSnapshot, event *model.TradeEvent, realizedProfit decimal.Decimal) error {
	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	now := time.Now().UTC()

	// A missing snapshot falls back to the starting capital.
	session.CurrentNetWorth = session.StartingCapital
	session.CurrentROI = decimal.Zero
	if snapshot != nil {
		session.CurrentNetWorth = snapshot.TotalCurrent
		session.CurrentROI = snapshot.OverallROI
	}
	session.TotalPnL = session.CurrentNetWorth.Sub(session.StartingCapital)
	session.DaysPlayed = int(now.Sub(session.StartedAt).Hours() / 24)
	session.LastPlayedAt = now

	if session.CurrentNetWorth.GreaterThan(session.HighestValue) {
		session.HighestValue = session.CurrentNetWorth
	}
	if session.CurrentNetWorth.LessThan(session.LowestValue) {
		session.LowestValue = session.CurrentNetWorth
	}

	if event != nil {
		session.TotalTrades++
		if realizedProfit.IsPositive() {
			session.ProfitableTrades++
		}
	}

	// The active-status guard makes the won transition terminal: a session
	// is promoted to the leaderboard at most once no matter how often
	// progress is refreshed afterwards.
	if session.Status == model.StatusActive && session.WinConditionMet() {
		session.Status = model.StatusWon
		completedAt := now
		session.CompletedAt = &completedAt

		unlockedCount, err := s.countUnlocked(ctx, session.ID)
		if err != nil {
			return err
		}
		if _, err := s.board.RecordWin(ctx, session, unlockedCount); err != nil {
			return err
		}

		metrics.GamesWonTotal.WithLabelValues(string(session.Mode)).Inc()
		slog.Info("game won",
			"session", session.ID,
			"player", session.PlayerName,
			"final_roi", session.CurrentROI.String(),
		)

		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:   "game_won",
				Player: session.PlayerName,
				Mode:   string(session.Mode),
			})
		}
	}

	unlocked, err := s.achievements.Evaluate(ctx, session, snapshot)
	if err != nil {
		return err
	}
	if s.wsHub != nil {
		for _, a := range unlocked {
			s.wsHub.Broadcast(WSMessage{
				Type:        "achievement_unlocked",
				Achievement: a.Name,
				Icon:        a.Icon,
			})
		}
	}

	return s.store.UpdateSession(ctx, session)
}

func (s *Service) countUnlocked(ctx context.Context, sessionID string) (int, error) {
	achievements, err := s.store.GetAchievementsBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range achievements {
		if a.Unlocked {
			count++
		}
	}
	return count, nil
}

// RecordAIInteraction increments the followed/ignored advice counters on
// the active session. A no-op when no session is active.
func (s *Service) RecordAIInteraction(ctx context.Context, followed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if followed {
		session.AIFollowed++
	} else {
		session.AIIgnored++
	}
	return s.store.UpdateSession(ctx, session)
}

// --- Queries (unlocked reads against committed state) ---

// Portfolio recomputes the snapshot from the committed ledger.
func (s *Service) Portfolio(ctx context.Context) (*model.PortfolioSnapshot, error) {
	events, err := s.store.GetTradeEvents(ctx)
	if err != nil {
		return nil, err
	}
	return portfolio.Compute(ctx, events, s.oracle)
}

// Transactions returns the most recent trade events, newest first.
func (s *Service) Transactions(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	events, err := s.store.GetRecentTradeEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.TradeEvent{}
	}
	return events, nil
}

// GameStats is the comprehensive view of the active session.
type GameStats struct {
	Session              *model.GameSession  `json:"game"`
	ProgressPercentage   decimal.Decimal     `json:"progress_percentage"`
	WinDescription       string              `json:"win_description"`
	AchievementsTotal    int                 `json:"achievements_total"`
	AchievementsUnlocked int                 `json:"achievements_unlocked"`
	Achievements         []model.Achievement `json:"achievements"`
	DaysSinceStart       int                 `json:"days_since_start"`
	IsWinning            bool                `json:"is_winning"`
}

// Stats assembles game statistics for the active session. Returns
// ErrNoActiveGame when there is none.
func (s *Service) Stats(ctx context.Context) (*GameStats, error) {
	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoActiveGame
		}
		return nil, err
	}

	achievements, err := s.store.GetAchievementsBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	unlockedCount := 0
	for _, a := range achievements {
		if a.Unlocked {
			unlockedCount++
		}
	}

	return &GameStats{
		Session:              session,
		ProgressPercentage:   session.WinProgress(),
		WinDescription:       session.WinDescription(),
		AchievementsTotal:    len(achievements),
		AchievementsUnlocked: unlockedCount,
		Achievements:         achievements,
		DaysSinceStart:       int(time.Now().UTC().Sub(session.StartedAt).Hours() / 24),
		IsWinning:            session.WinConditionMet(),
	}, nil
}

// Achievements lists all achievements for the active session.
func (s *Service) Achievements(ctx context.Context) ([]model.Achievement, error) {
	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoActiveGame
		}
		return nil, err
	}
	achievements, err := s.store.GetAchievementsBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if achievements == nil {
		achievements = []model.Achievement{}
	}
	return achievements, nil
}

// Leaderboard returns ranked win snapshots.
func (s *Service) Leaderboard(ctx context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error) {
	return s.board.Top(ctx, mode, limit)
}
