package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used across the ledger and the record store.
const DateLayout = "2006-01-02"

type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
)

type TradeRecord struct {
	ID               string           `json:"id"`
	Symbol           string           `json:"symbol"`
	Action           Action           `json:"action"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Price            decimal.Decimal  `json:"price"`
	TradeDate        time.Time        `json:"trade_date"`
	SignalConfidence *decimal.Decimal `json:"signal_confidence,omitempty"`
	SignalReference  string           `json:"signal_reference,omitempty"`

	// Seq is the position of the record in the fetch order; it breaks ties between
	// trades of the same symbol on the same date.
	Seq int `json:"-"`
}

// Value returns quantity times price.
func (t TradeRecord) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// Lot is an open buy quantity waiting to be matched against later sells.
type Lot struct {
	TradeID   string          `json:"trade_id"`
	Remaining decimal.Decimal `json:"remaining"`
	Price     decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
}

// DateOf strips the time of day, keeping the calendar date as written in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)) / (24 * time.Hour))
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
