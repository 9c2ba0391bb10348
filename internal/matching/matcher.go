// Package matching pairs sells with earlier buys, first in first out.
package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
)

type Result struct {
	Symbol    string
	Matches   []domain.RealizedMatch
	OpenLots  []domain.Lot
	Unmatched []Unmatched
}

type Matcher struct {
	policy OversoldPolicy
}

func New(policy OversoldPolicy) *Matcher {
	return &Matcher{policy: policy}
}

func (m *Matcher) Policy() OversoldPolicy {
	return m.policy
}

// Match runs FIFO matching over the trades of one symbol. The input is not
// modified; a sorted copy is used. Under OversoldHalt the result holds the
// matches emitted before the oversold sell and the error is an *OversoldError.
func (m *Matcher) Match(symbol string, trades []domain.TradeRecord) (*Result, error) {
	ordered := make([]domain.TradeRecord, len(trades))
	copy(ordered, trades)
	SortTrades(ordered)

	result := &Result{Symbol: symbol}
	var queue []domain.Lot

	for _, trade := range ordered {
		switch trade.Action {
		case domain.ActionBuy:
			queue = append(queue, domain.Lot{
				TradeID:   trade.ID,
				Remaining: trade.Quantity,
				Price:     trade.Price,
				Date:      trade.TradeDate,
			})

		case domain.ActionSell:
			remaining := trade.Quantity
			for remaining.IsPositive() && len(queue) > 0 {
				head := &queue[0]
				qty := decimal.Min(remaining, head.Remaining)

				result.Matches = append(result.Matches, domain.NewRealizedMatch(symbol, *head, trade, qty))

				head.Remaining = head.Remaining.Sub(qty)
				remaining = remaining.Sub(qty)
				if !head.Remaining.IsPositive() {
					queue = queue[1:]
				}
			}

			if remaining.IsPositive() {
				if m.policy == OversoldHalt {
					result.OpenLots = queue
					return result, &OversoldError{
						Symbol:      symbol,
						SellTradeID: trade.ID,
						SellDate:    trade.TradeDate,
						Unmatched:   remaining,
					}
				}
				result.Unmatched = append(result.Unmatched, Unmatched{
					TradeID:  trade.ID,
					Date:     trade.TradeDate,
					Quantity: remaining,
				})
			}
		}
	}

	result.OpenLots = queue
	return result, nil
}

// GroupBySymbol partitions trades by symbol, keeping fetch order within each group.
func GroupBySymbol(trades []domain.TradeRecord) map[string][]domain.TradeRecord {
	groups := make(map[string][]domain.TradeRecord)
	for _, t := range trades {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	return groups
}

// Symbols returns the group keys in lexical order.
func Symbols(groups map[string][]domain.TradeRecord) []string {
	symbols := make([]string, 0, len(groups))
	for s := range groups {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// SortTrades orders trades by date; trades on the same date keep their fetch order.
func SortTrades(trades []domain.TradeRecord) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.TradeDate.Equal(b.TradeDate) {
			return a.TradeDate.Before(b.TradeDate)
		}
		return a.Seq < b.Seq
	})
}
