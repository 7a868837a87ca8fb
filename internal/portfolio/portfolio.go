// Package portfolio derives per-symbol positions and whole-portfolio metrics
// from the trade ledger plus live prices. Computation is pure given its
// inputs: the only side effect is querying the price oracle.
package portfolio

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
	"github.com/coinquest/game-engine/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// symbolAgg accumulates one symbol's ledger totals.
type symbolAgg struct {
	netAmount decimal.Decimal
	invested  decimal.Decimal
	priceSum  decimal.Decimal
	trades    int64
}

// Compute builds a portfolio snapshot from the full ledger. A price lookup
// failure for any held symbol aborts the whole computation — no partial
// snapshot. An empty ledger yields empty positions and zero totals.
func Compute(ctx context.Context, events []model.TradeEvent, oracle pricing.Oracle) (*model.PortfolioSnapshot, error) {
	agg := make(map[string]*symbolAgg)
	var symbols []string

	for _, e := range events {
		sa, ok := agg[e.Symbol]
		if !ok {
			sa = &symbolAgg{}
			agg[e.Symbol] = sa
			symbols = append(symbols, e.Symbol)
		}
		sa.netAmount = sa.netAmount.Add(e.Amount)
		// Sells carry negative amounts, so they reduce invested value.
		sa.invested = sa.invested.Add(e.Amount.Mul(e.PriceUSD))
		// Cost basis is the plain mean of per-trade prices, not
		// amount-weighted.
		sa.priceSum = sa.priceSum.Add(e.PriceUSD)
		sa.trades++
	}

	sort.Strings(symbols)

	snapshot := &model.PortfolioSnapshot{
		Positions:     []model.Position{},
		TotalInvested: decimal.Zero,
		TotalCurrent:  decimal.Zero,
		OverallROI:    decimal.Zero,
	}

	for _, symbol := range symbols {
		sa := agg[symbol]
		// Fully-sold (or inconsistent) symbols are not reported.
		if !sa.netAmount.IsPositive() {
			continue
		}

		price, err := oracle.GetPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}

		avgCost := sa.priceSum.Div(decimal.NewFromInt(sa.trades))
		currentValue := sa.netAmount.Mul(price)

		roi := decimal.Zero
		if avgCost.IsPositive() {
			roi = price.Sub(avgCost).Div(avgCost).Mul(hundred)
		}

		snapshot.Positions = append(snapshot.Positions, model.Position{
			Symbol:        symbol,
			Amount:        sa.netAmount,
			AvgCostBasis:  avgCost,
			InvestedValue: sa.invested,
			CurrentPrice:  price,
			CurrentValue:  currentValue,
			ROI:           roi,
		})

		snapshot.TotalInvested = snapshot.TotalInvested.Add(sa.invested)
		snapshot.TotalCurrent = snapshot.TotalCurrent.Add(currentValue)
	}

	// overall_roi is exactly zero when nothing is invested. Not an
	// approximation: the zero guards the division.
	if snapshot.TotalInvested.IsPositive() {
		snapshot.OverallROI = snapshot.TotalCurrent.Sub(snapshot.TotalInvested).
			Div(snapshot.TotalInvested).Mul(hundred)
	}

	for i := range snapshot.Positions {
		p := &snapshot.Positions[i]
		if snapshot.TopGainer == nil || p.ROI.GreaterThan(snapshot.TopGainer.ROI) {
			snapshot.TopGainer = p
		}
		if snapshot.TopLoser == nil || p.ROI.LessThan(snapshot.TopLoser.ROI) {
			snapshot.TopLoser = p
		}
	}

	return snapshot, nil
}

// NetPosition returns the signed sum of trade amounts for one symbol. Used
// for the sell sufficiency check before a trade is appended.
func NetPosition(events []model.TradeEvent, symbol string) decimal.Decimal {
	net := decimal.Zero
	for _, e := range events {
		if e.Symbol == symbol {
			net = net.Add(e.Amount)
		}
	}
	return net
}

// AvgCostBasis returns the unweighted mean trade price for one symbol, or
// zero when the symbol has no trades. Used to compute realized profit on a
// sell.
func AvgCostBasis(events []model.TradeEvent, symbol string) decimal.Decimal {
	sum := decimal.Zero
	var n int64
	for _, e := range events {
		if e.Symbol == symbol {
			sum = sum.Add(e.PriceUSD)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(n))
}
