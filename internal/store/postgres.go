package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Trade ledger ---

func (s *PostgresStore) InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_events (id, symbol, amount, price_usd, kind, timestamp)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6)`,
		e.ID, e.Symbol, e.Amount.String(), e.PriceUSD.String(), string(e.Kind), e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetTradeEventsBySymbol(ctx context.Context, symbol string) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, amount::TEXT, price_usd::TEXT, kind, timestamp
		 FROM trade_events WHERE symbol = $1 ORDER BY timestamp`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

func (s *PostgresStore) GetTradeEvents(ctx context.Context) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, amount::TEXT, price_usd::TEXT, kind, timestamp
		 FROM trade_events ORDER BY timestamp`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

func (s *PostgresStore) GetRecentTradeEvents(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, amount::TEXT, price_usd::TEXT, kind, timestamp
		 FROM trade_events ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

func (s *PostgresStore) ClearTradeEvents(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM trade_events`)
	return err
}

// --- Game sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, g *model.GameSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO game_sessions (
			id, player_name, mode, status,
			starting_capital, current_capital,
			target_roi, target_net_worth, target_days,
			current_roi, current_net_worth, days_played,
			total_trades, profitable_trades,
			highest_value, lowest_value, total_pnl,
			ai_followed, ai_ignored,
			difficulty, bonus_multiplier,
			started_at, last_played_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5::NUMERIC, $6::NUMERIC,
			$7::NUMERIC, $8::NUMERIC, $9,
			$10::NUMERIC, $11::NUMERIC, $12,
			$13, $14,
			$15::NUMERIC, $16::NUMERIC, $17::NUMERIC,
			$18, $19,
			$20, $21::NUMERIC,
			$22, $23, $24
		)`,
		g.ID, g.PlayerName, string(g.Mode), string(g.Status),
		g.StartingCapital.String(), g.CurrentCapital.String(),
		g.TargetROI.String(), g.TargetNetWorth.String(), g.TargetDays,
		g.CurrentROI.String(), g.CurrentNetWorth.String(), g.DaysPlayed,
		g.TotalTrades, g.ProfitableTrades,
		g.HighestValue.String(), g.LowestValue.String(), g.TotalPnL.String(),
		g.AIFollowed, g.AIIgnored,
		g.Difficulty, g.BonusMultiplier.String(),
		g.StartedAt, g.LastPlayedAt, g.CompletedAt,
	)
	return err
}

const sessionColumns = `
	id, player_name, mode, status,
	starting_capital::TEXT, current_capital::TEXT,
	target_roi::TEXT, target_net_worth::TEXT, target_days,
	current_roi::TEXT, current_net_worth::TEXT, days_played,
	total_trades, profitable_trades,
	highest_value::TEXT, lowest_value::TEXT, total_pnl::TEXT,
	ai_followed, ai_ignored,
	difficulty, bonus_multiplier::TEXT,
	started_at, last_played_at, completed_at`

func (s *PostgresStore) GetActiveSession(ctx context.Context) (*model.GameSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM game_sessions WHERE status = 'active'
		 ORDER BY started_at DESC LIMIT 1`)
	g, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.GameSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	g, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return g, err
}

func (s *PostgresStore) UpdateSession(ctx context.Context, g *model.GameSession) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET
			status = $2,
			current_capital = $3::NUMERIC,
			current_roi = $4::NUMERIC, current_net_worth = $5::NUMERIC,
			days_played = $6, total_trades = $7, profitable_trades = $8,
			highest_value = $9::NUMERIC, lowest_value = $10::NUMERIC,
			total_pnl = $11::NUMERIC,
			ai_followed = $12, ai_ignored = $13,
			last_played_at = $14, completed_at = $15
		 WHERE id = $1`,
		g.ID, string(g.Status),
		g.CurrentCapital.String(),
		g.CurrentROI.String(), g.CurrentNetWorth.String(),
		g.DaysPlayed, g.TotalTrades, g.ProfitableTrades,
		g.HighestValue.String(), g.LowestValue.String(),
		g.TotalPnL.String(),
		g.AIFollowed, g.AIIgnored,
		g.LastPlayedAt, g.CompletedAt,
	)
	return err
}

func (s *PostgresStore) PauseActiveSessions(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET status = 'paused' WHERE status = 'active'`)
	return err
}

// --- Achievements ---

func (s *PostgresStore) CreateAchievements(ctx context.Context, achievements []model.Achievement) error {
	for i := range achievements {
		a := &achievements[i]
		_, err := s.pool.Exec(ctx,
			`INSERT INTO achievements (
				id, session_id, type, name, description, icon,
				target_value, current_value, unlocked,
				xp_reward, bonus_cash, unlocked_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10, $11::NUMERIC, $12, $13)`,
			a.ID, a.SessionID, string(a.Type), a.Name, a.Description, a.Icon,
			a.TargetValue.String(), a.CurrentValue.String(), a.Unlocked,
			a.XPReward, a.BonusCash.String(), a.UnlockedAt, a.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const achievementColumns = `
	id, session_id, type, name, description, icon,
	target_value::TEXT, current_value::TEXT, unlocked,
	xp_reward, bonus_cash::TEXT, unlocked_at, created_at`

func (s *PostgresStore) GetAchievementsBySession(ctx context.Context, sessionID string) ([]model.Achievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+achievementColumns+`
		 FROM achievements WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAchievements(rows)
}

func (s *PostgresStore) GetLockedAchievements(ctx context.Context, sessionID string) ([]model.Achievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+achievementColumns+`
		 FROM achievements WHERE session_id = $1 AND unlocked = FALSE
		 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAchievements(rows)
}

func (s *PostgresStore) UpdateAchievement(ctx context.Context, a *model.Achievement) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE achievements
		 SET current_value = $2::NUMERIC, unlocked = $3, unlocked_at = $4
		 WHERE id = $1`,
		a.ID, a.CurrentValue.String(), a.Unlocked, a.UnlockedAt,
	)
	return err
}

// --- Leaderboard ---

func (s *PostgresStore) InsertLeaderboardEntry(ctx context.Context, e *model.LeaderboardEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leaderboard (
			id, session_id, player_name,
			final_roi, final_net_worth, days_to_complete,
			total_trades, win_rate,
			mode, difficulty, achievements_unlocked, completed_at
		) VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8::NUMERIC, $9, $10, $11, $12)`,
		e.ID, e.SessionID, e.PlayerName,
		e.FinalROI.String(), e.FinalNetWorth.String(), e.DaysToComplete,
		e.TotalTrades, e.WinRate.String(),
		string(e.Mode), e.Difficulty, e.AchievementsUnlocked, e.CompletedAt,
	)
	return err
}

func (s *PostgresStore) GetLeaderboard(ctx context.Context, mode model.GameMode, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT id, session_id, player_name,
			final_roi::TEXT, final_net_worth::TEXT, days_to_complete,
			total_trades, win_rate::TEXT,
			mode, difficulty, achievements_unlocked, completed_at
		 FROM leaderboard`
	args := []any{}
	if mode != "" {
		query += ` WHERE mode = $1`
		args = append(args, string(mode))
	}
	query += ` ORDER BY final_roi DESC, days_to_complete ASC`
	if mode != "" {
		query += ` LIMIT $2`
	} else {
		query += ` LIMIT $1`
	}
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var roiS, worthS, rateS, modeS string

		if err := rows.Scan(&e.ID, &e.SessionID, &e.PlayerName,
			&roiS, &worthS, &e.DaysToComplete,
			&e.TotalTrades, &rateS,
			&modeS, &e.Difficulty, &e.AchievementsUnlocked, &e.CompletedAt); err != nil {
			return nil, err
		}

		e.FinalROI, _ = decimal.NewFromString(roiS)
		e.FinalNetWorth, _ = decimal.NewFromString(worthS)
		e.WinRate, _ = decimal.NewFromString(rateS)
		e.Mode = model.GameMode(modeS)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Row scanning helpers ---

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTradeEvents(rows pgxRows) ([]model.TradeEvent, error) {
	var events []model.TradeEvent
	for rows.Next() {
		var e model.TradeEvent
		var amountS, priceS, kindS string

		if err := rows.Scan(&e.ID, &e.Symbol, &amountS, &priceS, &kindS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = decimal.NewFromString(amountS)
		e.PriceUSD, _ = decimal.NewFromString(priceS)
		e.Kind = model.TradeKind(kindS)

		events = append(events, e)
	}
	return events, rows.Err()
}

func scanAchievements(rows pgxRows) ([]model.Achievement, error) {
	var achievements []model.Achievement
	for rows.Next() {
		var a model.Achievement
		var targetS, currentS, bonusS, typeS string

		if err := rows.Scan(&a.ID, &a.SessionID, &typeS, &a.Name, &a.Description, &a.Icon,
			&targetS, &currentS, &a.Unlocked,
			&a.XPReward, &bonusS, &a.UnlockedAt, &a.CreatedAt); err != nil {
			return nil, err
		}

		a.Type = model.AchievementType(typeS)
		a.TargetValue, _ = decimal.NewFromString(targetS)
		a.CurrentValue, _ = decimal.NewFromString(currentS)
		a.BonusCash, _ = decimal.NewFromString(bonusS)

		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

func scanSession(row pgx.Row) (*model.GameSession, error) {
	var g model.GameSession
	var modeS, statusS string
	var startCapS, curCapS, tROIS, tWorthS, cROIS, cWorthS string
	var highS, lowS, pnlS, bonusS string

	err := row.Scan(&g.ID, &g.PlayerName, &modeS, &statusS,
		&startCapS, &curCapS,
		&tROIS, &tWorthS, &g.TargetDays,
		&cROIS, &cWorthS, &g.DaysPlayed,
		&g.TotalTrades, &g.ProfitableTrades,
		&highS, &lowS, &pnlS,
		&g.AIFollowed, &g.AIIgnored,
		&g.Difficulty, &bonusS,
		&g.StartedAt, &g.LastPlayedAt, &g.CompletedAt)
	if err != nil {
		return nil, err
	}

	g.Mode = model.GameMode(modeS)
	g.Status = model.GameStatus(statusS)
	g.StartingCapital, _ = decimal.NewFromString(startCapS)
	g.CurrentCapital, _ = decimal.NewFromString(curCapS)
	g.TargetROI, _ = decimal.NewFromString(tROIS)
	g.TargetNetWorth, _ = decimal.NewFromString(tWorthS)
	g.CurrentROI, _ = decimal.NewFromString(cROIS)
	g.CurrentNetWorth, _ = decimal.NewFromString(cWorthS)
	g.HighestValue, _ = decimal.NewFromString(highS)
	g.LowestValue, _ = decimal.NewFromString(lowS)
	g.TotalPnL, _ = decimal.NewFromString(pnlS)
	g.BonusMultiplier, _ = decimal.NewFromString(bonusS)

	return &g, nil
}
