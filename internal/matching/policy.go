package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OversoldPolicy decides what happens when a sell exceeds the open lots of its symbol.
type OversoldPolicy int

const (
	// OversoldStop records the unmatched remainder and keeps matching later trades.
	OversoldStop OversoldPolicy = iota
	// OversoldHalt stops matching the symbol and returns an *OversoldError.
	OversoldHalt
)

func (p OversoldPolicy) String() string {
	switch p {
	case OversoldHalt:
		return "halt"
	default:
		return "stop"
	}
}

func ParseOversoldPolicy(s string) (OversoldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return OversoldStop, nil
	case "halt":
		return OversoldHalt, nil
	default:
		return OversoldStop, fmt.Errorf("unknown oversold policy %q", s)
	}
}

// Unmatched is the part of a sell that found no open lot.
type Unmatched struct {
	TradeID  string          `json:"trade_id"`
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
}

type OversoldError struct {
	Symbol      string
	SellTradeID string
	SellDate    time.Time
	Unmatched   decimal.Decimal
}

func (e *OversoldError) Error() string {
	return fmt.Sprintf("%s: sell %s on %s exceeds open lots by %s",
		e.Symbol, e.SellTradeID, e.SellDate.Format("2006-01-02"), e.Unmatched)
}
