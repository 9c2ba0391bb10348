package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealizedMatch is one sell slice matched against one buy lot.
type RealizedMatch struct {
	Symbol      string          `json:"symbol"`
	BuyDate     time.Time       `json:"buy_date"`
	SellDate    time.Time       `json:"sell_date"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	PnL         decimal.Decimal `json:"pnl"`
	HoldingDays int             `json:"holding_days"`
	BuyTradeID  string          `json:"buy_trade_id,omitempty"`
	SellTradeID string          `json:"sell_trade_id,omitempty"`
}

func NewRealizedMatch(symbol string, lot Lot, sell TradeRecord, quantity decimal.Decimal) RealizedMatch {
	return RealizedMatch{
		Symbol:      symbol,
		BuyDate:     lot.Date,
		SellDate:    sell.TradeDate,
		BuyPrice:    lot.Price,
		SellPrice:   sell.Price,
		Quantity:    quantity,
		PnL:         sell.Price.Sub(lot.Price).Mul(quantity),
		HoldingDays: DaysBetween(lot.Date, sell.TradeDate),
		BuyTradeID:  lot.TradeID,
		SellTradeID: sell.ID,
	}
}

// CostBasis is what the matched quantity cost when it was bought.
func (m RealizedMatch) CostBasis() decimal.Decimal {
	return m.BuyPrice.Mul(m.Quantity)
}
