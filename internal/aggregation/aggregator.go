// Package aggregation rolls trades and realized matches up into calendar-month periods.
package aggregation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
)

// RatioPlaces is the precision used for stored ratios (win rate, P&L percent).
const RatioPlaces = 4

var hundred = decimal.NewFromInt(100)

// PeriodKey returns the "YYYY-MM" period of a date.
func PeriodKey(date time.Time) string {
	return date.Format("2006-01")
}

type bucket struct {
	trades  int
	matches []domain.RealizedMatch
}

// Aggregate recomputes every period from scratch. Trade counts use the trade
// date; P&L figures use the sell date of each match. Rows are sorted by period.
func Aggregate(trades []domain.TradeRecord, matches []domain.RealizedMatch) []domain.PeriodPerformance {
	buckets := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		return b
	}

	for _, t := range trades {
		get(PeriodKey(t.TradeDate)).trades++
	}
	for _, m := range matches {
		b := get(PeriodKey(m.SellDate))
		b.matches = append(b.matches, m)
	}

	periods := make([]string, 0, len(buckets))
	for key := range buckets {
		periods = append(periods, key)
	}
	sort.Strings(periods)

	out := make([]domain.PeriodPerformance, 0, len(periods))
	for _, key := range periods {
		out = append(out, summarize(key, buckets[key]))
	}
	return out
}

// AggregateSince is Aggregate restricted to periods starting at or after since's month.
func AggregateSince(trades []domain.TradeRecord, matches []domain.RealizedMatch, since time.Time) []domain.PeriodPerformance {
	from := PeriodKey(since)

	all := Aggregate(trades, matches)
	out := all[:0]
	for _, p := range all {
		if p.Period >= from {
			out = append(out, p)
		}
	}
	return out
}

func summarize(period string, b *bucket) domain.PeriodPerformance {
	p := domain.PeriodPerformance{
		Period:       period,
		TotalTrades:  b.trades,
		MatchCount:   len(b.matches),
		TotalPnL:     decimal.Zero,
		WinRate:      decimal.Zero,
		TotalPnLPct:  decimal.Zero,
		BestTrade:    decimal.Zero,
		WorstTrade:   decimal.Zero,
		AvgTradeSize: decimal.Zero,
	}
	if len(b.matches) == 0 {
		return p
	}

	var (
		wins      int
		costBasis = decimal.Zero
	)
	p.BestTrade = b.matches[0].PnL
	p.WorstTrade = b.matches[0].PnL

	for _, m := range b.matches {
		p.TotalPnL = p.TotalPnL.Add(m.PnL)
		costBasis = costBasis.Add(m.CostBasis())
		if m.PnL.IsPositive() {
			wins++
		}
		if m.PnL.GreaterThan(p.BestTrade) {
			p.BestTrade = m.PnL
		}
		if m.PnL.LessThan(p.WorstTrade) {
			p.WorstTrade = m.PnL
		}
	}

	count := decimal.NewFromInt(int64(len(b.matches)))
	p.WinRate = decimal.NewFromInt(int64(wins)).DivRound(count, RatioPlaces)
	p.AvgTradeSize = costBasis.Div(count)
	if !costBasis.IsZero() {
		p.TotalPnLPct = p.TotalPnL.Mul(hundred).DivRound(costBasis, RatioPlaces)
	}
	return p
}
