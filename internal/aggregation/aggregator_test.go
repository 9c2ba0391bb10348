package aggregation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func match(sell time.Time, qty, buy, sellPrice string) domain.RealizedMatch {
	lot := domain.Lot{
		Remaining: decimal.RequireFromString(qty),
		Price:     decimal.RequireFromString(buy),
		Date:      sell.AddDate(0, 0, -5),
	}
	sale := domain.TradeRecord{
		Price:     decimal.RequireFromString(sellPrice),
		TradeDate: sell,
	}
	return domain.NewRealizedMatch("AAPL", lot, sale, decimal.RequireFromString(qty))
}

func TestPeriodKey(t *testing.T) {
	if got := PeriodKey(date(2024, 3, 31)); got != "2024-03" {
		t.Errorf("PeriodKey = %q, want %q", got, "2024-03")
	}
}

func TestAggregateCountsTradesInMonth(t *testing.T) {
	trades := []domain.TradeRecord{
		{TradeDate: date(2024, 1, 2)},
		{TradeDate: date(2024, 1, 15)},
		{TradeDate: date(2024, 1, 31)},
	}

	got := Aggregate(trades, nil)

	if len(got) != 1 {
		t.Fatalf("periods = %d, want 1", len(got))
	}
	if got[0].Period != "2024-01" || got[0].TotalTrades != 3 {
		t.Errorf("period = %s with %d trades, want 2024-01 with 3", got[0].Period, got[0].TotalTrades)
	}
	if !got[0].TotalPnL.IsZero() || got[0].MatchCount != 0 {
		t.Errorf("P&L = %s over %d matches, want zero", got[0].TotalPnL, got[0].MatchCount)
	}
}

func TestAggregatePnLBySellMonth(t *testing.T) {
	trades := []domain.TradeRecord{
		{TradeDate: date(2024, 1, 10)},
		{TradeDate: date(2024, 2, 3)},
		{TradeDate: date(2024, 2, 5)},
	}
	matches := []domain.RealizedMatch{
		match(date(2024, 2, 3), "10", "5", "8"),  // +30 on 50
		match(date(2024, 2, 5), "2", "6", "8"),   // +4 on 12
		match(date(2024, 2, 20), "4", "10", "9"), // -4 on 40
	}

	got := Aggregate(trades, matches)

	if len(got) != 2 {
		t.Fatalf("periods = %d, want 2", len(got))
	}
	if got[0].Period != "2024-01" || got[1].Period != "2024-02" {
		t.Fatalf("periods = %s,%s, want 2024-01,2024-02", got[0].Period, got[1].Period)
	}

	feb := got[1]
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"TotalPnL", feb.TotalPnL, "30"},
		{"WinRate", feb.WinRate, "0.6667"},
		{"TotalPnLPct", feb.TotalPnLPct, "29.4118"},
		{"BestTrade", feb.BestTrade, "30"},
		{"WorstTrade", feb.WorstTrade, "-4"},
		{"AvgTradeSize", feb.AvgTradeSize, "34"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if feb.TotalTrades != 2 || feb.MatchCount != 3 {
		t.Errorf("TotalTrades/MatchCount = %d/%d, want 2/3", feb.TotalTrades, feb.MatchCount)
	}
}

func TestAggregateSince(t *testing.T) {
	trades := []domain.TradeRecord{
		{TradeDate: date(2023, 12, 1)},
		{TradeDate: date(2024, 1, 1)},
		{TradeDate: date(2024, 2, 1)},
	}

	got := AggregateSince(trades, nil, date(2024, 1, 20))

	if len(got) != 2 || got[0].Period != "2024-01" {
		t.Errorf("AggregateSince = %+v, want 2024-01 and 2024-02", got)
	}
}
