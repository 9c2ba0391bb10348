package writer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/store"
)

// Property names of realized match rows.
const (
	MatchSymbol      = "Symbol"
	MatchBuyDate     = "Buy Date"
	MatchSellDate    = "Sell Date"
	MatchBuyPrice    = "Buy Price"
	MatchSellPrice   = "Sell Price"
	MatchQuantity    = "Quantity"
	MatchPnL         = "PnL"
	MatchHoldingDays = "Holding Days"
	MatchBuyTradeID  = "Buy Trade ID"
	MatchSellTradeID = "Sell Trade ID"
)

// Property names of period performance rows.
const (
	PeriodName         = "Period"
	PeriodTotalTrades  = "Total Trades"
	PeriodMatchCount   = "Match Count"
	PeriodTotalPnL     = "Total P&L"
	PeriodWinRate      = "Win Rate"
	PeriodTotalPnLPct  = "Total P&L %"
	PeriodBestTrade    = "Best Trade"
	PeriodWorstTrade   = "Worst Trade"
	PeriodAvgTradeSize = "Avg Trade Size"
)

func MatchFields(m domain.RealizedMatch) store.Fields {
	f := store.Fields{
		MatchSymbol:      m.Symbol,
		MatchBuyDate:     m.BuyDate,
		MatchSellDate:    m.SellDate,
		MatchBuyPrice:    m.BuyPrice,
		MatchSellPrice:   m.SellPrice,
		MatchQuantity:    m.Quantity,
		MatchPnL:         m.PnL,
		MatchHoldingDays: m.HoldingDays,
	}
	if m.BuyTradeID != "" {
		f[MatchBuyTradeID] = m.BuyTradeID
	}
	if m.SellTradeID != "" {
		f[MatchSellTradeID] = m.SellTradeID
	}
	return f
}

// MatchKey is the natural key of a realized match. Prices are part of it so
// two lots of equal size bought and sold on the same days stay distinct, and
// the source trade IDs, when known, separate identical lots of one sell.
func MatchKey(m domain.RealizedMatch) store.Criteria {
	c := store.Criteria{
		MatchSymbol:    m.Symbol,
		MatchBuyDate:   m.BuyDate,
		MatchSellDate:  m.SellDate,
		MatchQuantity:  m.Quantity,
		MatchBuyPrice:  m.BuyPrice,
		MatchSellPrice: m.SellPrice,
	}
	if m.BuyTradeID != "" {
		c[MatchBuyTradeID] = m.BuyTradeID
	}
	if m.SellTradeID != "" {
		c[MatchSellTradeID] = m.SellTradeID
	}
	return c
}

// cacheKey flattens a natural key into a stable string.
func cacheKey(entity string, c store.Criteria, order ...string) string {
	parts := make([]string, 0, len(order)+1)
	parts = append(parts, entity)
	for _, name := range order {
		v, ok := c[name]
		if !ok {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, fmt.Sprint(store.Canonical(v)))
	}
	return strings.Join(parts, "|")
}

func matchCacheKey(m domain.RealizedMatch) string {
	return cacheKey("match", MatchKey(m),
		MatchSymbol, MatchBuyDate, MatchSellDate, MatchQuantity, MatchBuyPrice, MatchSellPrice,
		MatchBuyTradeID, MatchSellTradeID)
}

func PeriodFields(p domain.PeriodPerformance) store.Fields {
	return store.Fields{
		PeriodName:         p.Period,
		PeriodTotalTrades:  p.TotalTrades,
		PeriodMatchCount:   p.MatchCount,
		PeriodTotalPnL:     p.TotalPnL,
		PeriodWinRate:      p.WinRate,
		PeriodTotalPnLPct:  p.TotalPnLPct,
		PeriodBestTrade:    p.BestTrade,
		PeriodWorstTrade:   p.WorstTrade,
		PeriodAvgTradeSize: p.AvgTradeSize,
	}
}

func PeriodKey(p domain.PeriodPerformance) store.Criteria {
	return store.Criteria{PeriodName: p.Period}
}

func DecodeMatch(rec store.Record) (domain.RealizedMatch, error) {
	var (
		m   domain.RealizedMatch
		err error
	)
	d := decoder{fields: rec.Fields}

	m.Symbol = d.text(MatchSymbol)
	m.BuyDate = d.date(MatchBuyDate)
	m.SellDate = d.date(MatchSellDate)
	m.BuyPrice = d.decimal(MatchBuyPrice)
	m.SellPrice = d.decimal(MatchSellPrice)
	m.Quantity = d.decimal(MatchQuantity)
	m.PnL = d.decimal(MatchPnL)
	m.HoldingDays = d.integer(MatchHoldingDays)
	m.BuyTradeID = d.optionalText(MatchBuyTradeID)
	m.SellTradeID = d.optionalText(MatchSellTradeID)

	if d.err != nil {
		err = fmt.Errorf("decode match %s: %w", rec.ID, d.err)
	}
	return m, err
}

func DecodePeriod(rec store.Record) (domain.PeriodPerformance, error) {
	var (
		p   domain.PeriodPerformance
		err error
	)
	d := decoder{fields: rec.Fields}

	p.Period = d.text(PeriodName)
	p.TotalTrades = d.integer(PeriodTotalTrades)
	p.MatchCount = d.integer(PeriodMatchCount)
	p.TotalPnL = d.decimal(PeriodTotalPnL)
	p.WinRate = d.decimal(PeriodWinRate)
	p.TotalPnLPct = d.decimal(PeriodTotalPnLPct)
	p.BestTrade = d.decimal(PeriodBestTrade)
	p.WorstTrade = d.decimal(PeriodWorstTrade)
	p.AvgTradeSize = d.decimal(PeriodAvgTradeSize)

	if d.err != nil {
		err = fmt.Errorf("decode period %s: %w", rec.ID, d.err)
	}
	return p, err
}

// decoder reads canonical field values and keeps the first error.
type decoder struct {
	fields store.Fields
	err    error
}

func (d *decoder) raw(name string) (string, bool) {
	v, ok := d.fields[name]
	if !ok || v == nil {
		if d.err == nil {
			d.err = fmt.Errorf("missing %q", name)
		}
		return "", false
	}
	return fmt.Sprint(store.Canonical(v)), true
}

func (d *decoder) text(name string) string {
	s, _ := d.raw(name)
	return s
}

func (d *decoder) optionalText(name string) string {
	v, ok := d.fields[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (d *decoder) decimal(name string) decimal.Decimal {
	s, ok := d.raw(name)
	if !ok {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%q: %w", name, err)
	}
	return v
}

func (d *decoder) integer(name string) int {
	s, ok := d.raw(name)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%q: %w", name, err)
	}
	return v
}

func (d *decoder) date(name string) time.Time {
	s, ok := d.raw(name)
	if !ok {
		return time.Time{}
	}
	v, err := time.Parse(domain.DateLayout, s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%q: %w", name, err)
	}
	return v
}
