// Package advisor turns portfolio and game context plus a free-text
// question into a natural-language answer. It consumes the engine's outputs
// and never mutates engine state. When no LLM provider is configured or the
// provider fails, it degrades to a deterministic rule-based answer.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
)

// GameContext is the session view the advisor folds into its prompt.
type GameContext struct {
	WinDescription       string
	Progress             decimal.Decimal
	Difficulty           string
	DaysPlayed           int
	TotalTrades          int
	AchievementsUnlocked int
	AchievementsTotal    int
	IsWinning            bool
}

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"
)

// Options configures the advice generator.
type Options struct {
	Provider  string // openai, groq, or ollama
	APIKey    string // bearer token for openai/groq
	Model     string // chat model name; provider default when empty
	OllamaURL string // base URL for ollama; default http://localhost:11434
	Timeout   time.Duration
}

// Generator builds prompts from engine outputs and queries a chat provider.
type Generator struct {
	opts   Options
	client *resty.Client
}

// New creates an advice generator.
func New(opts Options) *Generator {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.OllamaURL == "" {
		opts.OllamaURL = "http://localhost:11434"
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)

	return &Generator{opts: opts, client: client}
}

// Advise answers a question with portfolio and game context. game may be
// nil when no session is active. Provider failures degrade to the
// rule-based fallback rather than erroring: advice is best-effort.
func (g *Generator) Advise(ctx context.Context, question string, snapshot *model.PortfolioSnapshot, recent []model.TradeEvent, game *GameContext) string {
	prompt := g.buildPrompt(question, snapshot, recent, game)

	var answer string
	var err error

	switch g.opts.Provider {
	case ProviderOpenAI:
		answer, err = g.queryChatAPI(ctx, "https://api.openai.com/v1/chat/completions", "gpt-3.5-turbo", prompt)
	case ProviderGroq:
		answer, err = g.queryChatAPI(ctx, "https://api.groq.com/openai/v1/chat/completions", "mixtral-8x7b-32768", prompt)
	case ProviderOllama:
		answer, err = g.queryOllama(ctx, prompt)
	default:
		return g.fallback(question, snapshot)
	}

	if err != nil {
		slog.Warn("advice provider failed, using fallback", "provider", g.opts.Provider, "err", err)
		return g.fallback(question, snapshot)
	}
	return answer
}

// --- Prompt assembly ---

func (g *Generator) buildPrompt(question string, snapshot *model.PortfolioSnapshot, recent []model.TradeEvent, game *GameContext) string {
	var b strings.Builder

	b.WriteString("You are an expert cryptocurrency trading assistant and game coach. " +
		"You help users analyze their portfolio, make informed trading decisions, and achieve their game objectives.")
	if game != nil {
		b.WriteString(" You're also helping them succeed in their trading challenge game - " +
			"acknowledge their progress, celebrate achievements, and provide strategic advice to help them reach their goals.")
	}

	b.WriteString("\n\nPORTFOLIO SUMMARY:\n")
	fmt.Fprintf(&b, "- Total Invested: $%s\n", snapshot.TotalInvested.StringFixed(2))
	fmt.Fprintf(&b, "- Current Value: $%s\n", snapshot.TotalCurrent.StringFixed(2))
	fmt.Fprintf(&b, "- Overall ROI: %s%%\n", snapshot.OverallROI.StringFixed(2))

	b.WriteString("\nHOLDINGS:\n")
	for _, p := range snapshot.Positions {
		fmt.Fprintf(&b, "- %s: %s coins, ROI: %s%%, Current Value: $%s\n",
			p.Symbol, p.Amount.String(), p.ROI.StringFixed(2), p.CurrentValue.StringFixed(2))
	}
	if snapshot.TopGainer != nil {
		fmt.Fprintf(&b, "\nTop Performer: %s (%s%%)\n",
			snapshot.TopGainer.Symbol, snapshot.TopGainer.ROI.StringFixed(2))
	}
	if snapshot.TopLoser != nil {
		fmt.Fprintf(&b, "Worst Performer: %s (%s%%)\n",
			snapshot.TopLoser.Symbol, snapshot.TopLoser.ROI.StringFixed(2))
	}

	if len(recent) > 0 {
		b.WriteString("\nRECENT TRANSACTIONS:\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- %s %s %s at $%s on %s\n",
				strings.ToUpper(string(e.Kind)), e.Amount.Abs().String(), e.Symbol,
				e.PriceUSD.String(), e.Timestamp.Format("2006-01-02"))
		}
	}

	if game != nil {
		b.WriteString("\nGAME CHALLENGE:\n")
		fmt.Fprintf(&b, "- Mode: %s\n", game.WinDescription)
		fmt.Fprintf(&b, "- Current Progress: %s%%\n", game.Progress.StringFixed(1))
		fmt.Fprintf(&b, "- Difficulty: %s\n", game.Difficulty)
		fmt.Fprintf(&b, "- Days Played: %d\n", game.DaysPlayed)
		fmt.Fprintf(&b, "- Total Trades: %d\n", game.TotalTrades)
		fmt.Fprintf(&b, "- Achievements Unlocked: %d/%d\n", game.AchievementsUnlocked, game.AchievementsTotal)
		if game.IsWinning {
			b.WriteString("\nCONGRATULATIONS! The player has reached their goal.\n")
		}
	}

	b.WriteString("\nUser Question: " + question + "\n\n")
	b.WriteString("Please provide helpful, accurate advice based on the portfolio and game data. " +
		"Be specific about their holdings and game progress when relevant. Keep responses concise " +
		"but informative and motivating. Always remind users that this is not financial advice " +
		"and they should do their own research.")

	return b.String()
}

// --- Providers ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *Generator) queryChatAPI(ctx context.Context, url, defaultModel, prompt string) (string, error) {
	if g.opts.APIKey == "" {
		return "", fmt.Errorf("no API key configured for %s", g.opts.Provider)
	}

	chatModel := g.opts.Model
	if chatModel == "" {
		chatModel = defaultModel
	}

	var result chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.opts.APIKey).
		SetBody(chatRequest{
			Model:       chatModel,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens:   500,
			Temperature: 0.7,
		}).
		SetResult(&result).
		Post(url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("%s returned status %d", g.opts.Provider, resp.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", g.opts.Provider)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (g *Generator) queryOllama(ctx context.Context, prompt string) (string, error) {
	chatModel := g.opts.Model
	if chatModel == "" {
		chatModel = "llama3.2"
	}

	var result ollamaResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(ollamaRequest{Model: chatModel, Prompt: prompt, Stream: false}).
		SetResult(&result).
		Post(g.opts.OllamaURL + "/api/generate")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode())
	}
	return strings.TrimSpace(result.Response), nil
}

// --- Fallback ---

// fallback answers directly from the snapshot when no provider is
// reachable.
func (g *Generator) fallback(question string, snapshot *model.PortfolioSnapshot) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "roi"):
		return fmt.Sprintf("Your overall ROI is %s%%. This shows how your portfolio is performing compared to your initial investment.",
			snapshot.OverallROI.StringFixed(2))

	case strings.Contains(q, "best") || strings.Contains(q, "top"):
		if top := snapshot.TopGainer; top != nil {
			return fmt.Sprintf("Your top performing coin is %s with an ROI of %s%%. Consider monitoring this asset's momentum.",
				top.Symbol, top.ROI.StringFixed(2))
		}

	case strings.Contains(q, "worst") || strings.Contains(q, "loss"):
		if low := snapshot.TopLoser; low != nil {
			return fmt.Sprintf("Your worst performing coin is %s with an ROI of %s%%. You might want to research recent developments for this asset.",
				low.Symbol, low.ROI.StringFixed(2))
		}

	default:
		for _, p := range snapshot.Positions {
			if strings.Contains(q, strings.ToLower(p.Symbol)) {
				return fmt.Sprintf("%s has an ROI of %s%% and current value of $%s. This represents %s coins at an average buy price of $%s.",
					p.Symbol, p.ROI.StringFixed(2), p.CurrentValue.StringFixed(2),
					p.Amount.String(), p.AvgCostBasis.StringFixed(2))
			}
		}
	}

	return "The AI assistant is currently unavailable. Please check the advisor configuration; your portfolio summary above still offers basic insights."
}
