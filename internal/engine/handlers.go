package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/advisor"
	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/pricing"
)

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade/buy and /trade/sell.
type TradeRequest struct {
	Symbol    string          `json:"symbol"`
	USDAmount decimal.Decimal `json:"usd_amount"`
}

// StartGameRequest is the JSON body for POST /game/start.
type StartGameRequest struct {
	PlayerName string         `json:"player_name"`
	Mode       model.GameMode `json:"mode"`
	Difficulty string         `json:"difficulty"`
}

// AIInteractionRequest is the JSON body for POST /game/ai-interaction.
type AIInteractionRequest struct {
	Followed bool `json:"followed"`
}

// AdviceRequest is the JSON body for POST /advice.
type AdviceRequest struct {
	Question string `json:"question"`
}

// --- HTTP Handlers ---

// HandleBuy handles POST /api/v1/trade/buy.
func (s *Service) HandleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TradeBuy)
}

// HandleSell handles POST /api/v1/trade/sell.
func (s *Service) HandleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TradeSell)
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request, kind model.TradeKind) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	apply := s.Buy
	if kind == model.TradeSell {
		apply = s.Sell
	}

	event, err := apply(r.Context(), req.Symbol, req.USDAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// HandleGetPortfolio handles GET /api/v1/portfolio.
func (s *Service) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Portfolio(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleGetTransactions handles GET /api/v1/transactions?limit=N.
func (s *Service) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.Transactions(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleStartGame handles POST /api/v1/game/start.
func (s *Service) HandleStartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.StartNewGame(r.Context(), req.PlayerName, req.Mode, req.Difficulty)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// HandleGameStats handles GET /api/v1/game/stats. The progress refresh runs
// first so days played and the win check reflect the current clock and
// prices.
func (s *Service) HandleGameStats(w http.ResponseWriter, r *http.Request) {
	if err := s.UpdateProgress(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}

	stats, err := s.Stats(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleGetAchievements handles GET /api/v1/game/achievements.
func (s *Service) HandleGetAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := s.Achievements(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

// HandleAIInteraction handles POST /api/v1/game/ai-interaction.
func (s *Service) HandleAIInteraction(w http.ResponseWriter, r *http.Request) {
	var req AIInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.RecordAIInteraction(r.Context(), req.Followed); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HandleGetLeaderboard handles GET /api/v1/leaderboard?mode=&limit=.
func (s *Service) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	mode := model.GameMode(r.URL.Query().Get("mode"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.Leaderboard(r.Context(), mode, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleAdvice handles POST /api/v1/advice. Advice generation reads the
// engine's outputs but never mutates its state.
func (s *Service) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		writeError(w, "advice generator not configured", http.StatusServiceUnavailable)
		return
	}

	var req AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		writeError(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	snapshot, err := s.Portfolio(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	recent, err := s.Transactions(ctx, 5)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var game *advisor.GameContext
	stats, err := s.Stats(ctx)
	switch {
	case err == nil:
		game = &advisor.GameContext{
			WinDescription:       stats.WinDescription,
			Progress:             stats.ProgressPercentage,
			Difficulty:           stats.Session.Difficulty,
			DaysPlayed:           stats.DaysSinceStart,
			TotalTrades:          stats.Session.TotalTrades,
			AchievementsUnlocked: stats.AchievementsUnlocked,
			AchievementsTotal:    stats.AchievementsTotal,
			IsWinning:            stats.IsWinning,
		}
	case !errors.Is(err, ErrNoActiveGame):
		writeEngineError(w, err)
		return
	}

	answer := s.advisor.Advise(ctx, req.Question, snapshot, recent, game)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// --- Response helpers ---

// writeEngineError maps engine errors onto HTTP statuses with the failed
// precondition spelled out for the caller.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSymbol):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientHoldings):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoActiveGame):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pricing.ErrPriceUnavailable):
		writeError(w, err.Error(), http.StatusBadGateway)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
