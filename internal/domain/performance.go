package domain

import (
	"github.com/shopspring/decimal"
)

type PeriodPerformance struct {
	Period       string          `json:"period"`
	TotalTrades  int             `json:"total_trades"`
	MatchCount   int             `json:"match_count"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      decimal.Decimal `json:"win_rate"`
	TotalPnLPct  decimal.Decimal `json:"total_pnl_pct"`
	BestTrade    decimal.Decimal `json:"best_trade"`
	WorstTrade   decimal.Decimal `json:"worst_trade"`
	AvgTradeSize decimal.Decimal `json:"avg_trade_size"`
}

type MatchFilter struct {
	Symbol string
}
