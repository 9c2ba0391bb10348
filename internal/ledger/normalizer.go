// Package ledger turns raw ledger records into typed trades.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

const (
	FieldSymbol           = "symbol"
	FieldAction           = "action"
	FieldQuantity         = "quantity"
	FieldPrice            = "price"
	FieldTradeDate        = "trade_date"
	FieldSignalConfidence = "signal_confidence"
	FieldSignalReference  = "signal_reference"
)

var maxConfidence = decimal.NewFromInt(10)

// Schema names the external property that holds each trade field.
type Schema struct {
	Symbol           string
	Action           string
	Quantity         string
	Price            string
	TradeDate        string
	SignalConfidence string
	SignalReference  string
}

func DefaultSchema() Schema {
	return Schema{
		Symbol:           "Ticker",
		Action:           "Action",
		Quantity:         "Quantity",
		Price:            "Price",
		TradeDate:        "Trade Date",
		SignalConfidence: "Signal Confidence",
		SignalReference:  "Signal Reference",
	}
}

type Normalizer struct {
	schema Schema
	logger *zap.Logger
}

func NewNormalizer(schema Schema, log *zap.Logger) *Normalizer {
	return &Normalizer{schema: schema, logger: logger.OrNop(log)}
}

type Result struct {
	Trades     []domain.TradeRecord
	Rejections []*MalformedRecordError
}

// NormalizeAll converts a batch, keeping fetch order in TradeRecord.Seq.
// A bad record is rejected on its own; the batch always completes.
func (n *Normalizer) NormalizeAll(records []store.Record, once *logger.Once) *Result {
	result := &Result{
		Trades: make([]domain.TradeRecord, 0, len(records)),
	}

	for i, rec := range records {
		trade, err := n.Normalize(rec, i, once)
		if err != nil {
			var malformed *MalformedRecordError
			if !errors.As(err, &malformed) {
				malformed = &MalformedRecordError{RecordID: rec.ID, Err: err}
			}
			result.Rejections = append(result.Rejections, malformed)
			metrics.RecordsRejected.WithLabelValues(malformed.Field).Inc()

			n.logger.Warn("skipping malformed ledger record",
				zap.String("record_id", rec.ID),
				zap.String("field", malformed.Field),
				zap.Error(malformed.Err))
			continue
		}

		n.logger.Debug("parsed ledger record",
			zap.String("record_id", rec.ID),
			zap.String("symbol", trade.Symbol),
			zap.String("action", string(trade.Action)),
			zap.String("quantity", trade.Quantity.String()),
			zap.String("price", trade.Price.String()),
			zap.String("trade_date", trade.TradeDate.Format(domain.DateLayout)))
		result.Trades = append(result.Trades, trade)
	}

	return result
}

// Normalize maps one record onto a TradeRecord. Errors are *MalformedRecordError;
// a missing required property wraps a *SchemaMismatchError.
func (n *Normalizer) Normalize(rec store.Record, seq int, once *logger.Once) (domain.TradeRecord, error) {
	trade := domain.TradeRecord{ID: rec.ID, Seq: seq}

	raw, err := n.required(rec, FieldSymbol, n.schema.Symbol)
	if err != nil {
		return trade, err
	}
	symbol, err := toString(raw)
	if err == nil && symbol == "" {
		err = errEmpty
	}
	if err != nil {
		return trade, n.malformed(rec, FieldSymbol, err)
	}
	trade.Symbol = domain.NormalizeSymbol(symbol)

	if raw, err = n.required(rec, FieldAction, n.schema.Action); err != nil {
		return trade, err
	}
	if trade.Action, err = toAction(raw); err != nil {
		return trade, n.malformed(rec, FieldAction, err)
	}

	if raw, err = n.required(rec, FieldQuantity, n.schema.Quantity); err != nil {
		return trade, err
	}
	if trade.Quantity, err = toDecimal(raw); err != nil {
		return trade, n.malformed(rec, FieldQuantity, err)
	}
	if !trade.Quantity.IsPositive() {
		return trade, n.malformed(rec, FieldQuantity, fmt.Errorf("must be positive, got %s", trade.Quantity))
	}

	if raw, err = n.required(rec, FieldPrice, n.schema.Price); err != nil {
		return trade, err
	}
	if trade.Price, err = toDecimal(raw); err != nil {
		return trade, n.malformed(rec, FieldPrice, err)
	}
	if trade.Price.IsNegative() {
		return trade, n.malformed(rec, FieldPrice, fmt.Errorf("must not be negative, got %s", trade.Price))
	}

	if raw, err = n.required(rec, FieldTradeDate, n.schema.TradeDate); err != nil {
		return trade, err
	}
	if trade.TradeDate, err = toDate(raw); err != nil {
		return trade, n.malformed(rec, FieldTradeDate, err)
	}

	trade.SignalConfidence = n.confidence(rec, once)
	if raw, ok := rec.Fields[n.schema.SignalReference]; ok && raw != nil {
		if ref, err := toString(raw); err == nil {
			trade.SignalReference = ref
		}
	}

	return trade, nil
}

// confidence drops an unusable optional value and warns once per field.
func (n *Normalizer) confidence(rec store.Record, once *logger.Once) *decimal.Decimal {
	raw, ok := rec.Fields[n.schema.SignalConfidence]
	if !ok || raw == nil {
		return nil
	}
	if s, isString := raw.(string); isString && s == "" {
		return nil
	}

	value, err := toDecimal(raw)
	if err == nil && (value.IsNegative() || value.GreaterThan(maxConfidence)) {
		err = fmt.Errorf("out of range 0..10: %s", value)
	}
	if err != nil {
		if once != nil {
			once.Warn(FieldSignalConfidence, "ignoring unusable signal confidence values",
				zap.String("record_id", rec.ID),
				zap.Error(err))
		}
		n.logger.Debug("dropped signal confidence",
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return nil
	}
	return &value
}

func (n *Normalizer) required(rec store.Record, field, property string) (any, error) {
	raw, ok := rec.Fields[property]
	if !ok {
		return nil, n.malformed(rec, field, &SchemaMismatchError{Field: field, Property: property})
	}
	return raw, nil
}

func (n *Normalizer) malformed(rec store.Record, field string, err error) error {
	return &MalformedRecordError{RecordID: rec.ID, Field: field, Err: err}
}
