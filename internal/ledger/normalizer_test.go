package ledger

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
)

func record(id string, fields store.Fields) store.Record {
	return store.Record{ID: id, Fields: fields}
}

func validFields() store.Fields {
	return store.Fields{
		"Ticker":     " aapl ",
		"Action":     "BUY",
		"Quantity":   json.Number("10"),
		"Price":      "5.25",
		"Trade Date": "2024-01-15",
	}
}

func TestNormalizeValidRecord(t *testing.T) {
	n := NewNormalizer(DefaultSchema(), nil)

	fields := validFields()
	fields["Signal Confidence"] = 7.5
	fields["Signal Reference"] = "news-123"

	trade, err := n.Normalize(record("r1", fields), 3, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if trade.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", trade.Symbol, "AAPL")
	}
	if trade.Action != domain.ActionBuy {
		t.Errorf("Action = %q, want %q", trade.Action, domain.ActionBuy)
	}
	if !trade.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Quantity = %s, want 10", trade.Quantity)
	}
	if !trade.Price.Equal(decimal.RequireFromString("5.25")) {
		t.Errorf("Price = %s, want 5.25", trade.Price)
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !trade.TradeDate.Equal(want) {
		t.Errorf("TradeDate = %v, want %v", trade.TradeDate, want)
	}
	if trade.SignalConfidence == nil || !trade.SignalConfidence.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("SignalConfidence = %v, want 7.5", trade.SignalConfidence)
	}
	if trade.SignalReference != "news-123" {
		t.Errorf("SignalReference = %q, want %q", trade.SignalReference, "news-123")
	}
	if trade.Seq != 3 || trade.ID != "r1" {
		t.Errorf("ID/Seq = %s/%d, want r1/3", trade.ID, trade.Seq)
	}
}

func TestNormalizeActions(t *testing.T) {
	n := NewNormalizer(DefaultSchema(), nil)

	tests := []struct {
		input   string
		want    domain.Action
		wantErr bool
	}{
		{"buy", domain.ActionBuy, false},
		{"BUY", domain.ActionBuy, false},
		{" Sell ", domain.ActionSell, false},
		{"short", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		fields := validFields()
		fields["Action"] = tt.input

		trade, err := n.Normalize(record("r", fields), 0, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("action %q: error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && trade.Action != tt.want {
			t.Errorf("action %q: got %q, want %q", tt.input, trade.Action, tt.want)
		}
	}
}

func TestNormalizeDates(t *testing.T) {
	n := NewNormalizer(DefaultSchema(), nil)
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	inputs := []any{
		"2024-03-09",
		"2024-03-09T22:15:00-03:00",
		time.Date(2024, 3, 9, 18, 0, 0, 0, time.FixedZone("EST", -5*3600)),
	}

	for _, in := range inputs {
		fields := validFields()
		fields["Trade Date"] = in

		trade, err := n.Normalize(record("r", fields), 0, nil)
		if err != nil {
			t.Errorf("date %v: unexpected error %v", in, err)
			continue
		}
		if !trade.TradeDate.Equal(want) {
			t.Errorf("date %v: got %v, want %v", in, trade.TradeDate, want)
		}
	}
}

func TestNormalizeRejections(t *testing.T) {
	n := NewNormalizer(DefaultSchema(), nil)

	tests := []struct {
		name      string
		mutate    func(store.Fields)
		field     string
		schemaErr bool
	}{
		{"missing ticker", func(f store.Fields) { delete(f, "Ticker") }, FieldSymbol, true},
		{"blank ticker", func(f store.Fields) { f["Ticker"] = "   " }, FieldSymbol, false},
		{"missing action", func(f store.Fields) { delete(f, "Action") }, FieldAction, true},
		{"zero quantity", func(f store.Fields) { f["Quantity"] = 0 }, FieldQuantity, false},
		{"negative quantity", func(f store.Fields) { f["Quantity"] = "-3" }, FieldQuantity, false},
		{"text quantity", func(f store.Fields) { f["Quantity"] = "ten" }, FieldQuantity, false},
		{"null price", func(f store.Fields) { f["Price"] = nil }, FieldPrice, false},
		{"negative price", func(f store.Fields) { f["Price"] = -1.5 }, FieldPrice, false},
		{"NaN price", func(f store.Fields) { f["Price"] = math.NaN() }, FieldPrice, false},
		{"infinite quantity", func(f store.Fields) { f["Quantity"] = math.Inf(1) }, FieldQuantity, false},
		{"float32 NaN quantity", func(f store.Fields) { f["Quantity"] = float32(math.NaN()) }, FieldQuantity, false},
		{"missing date", func(f store.Fields) { delete(f, "Trade Date") }, FieldTradeDate, true},
		{"bad date", func(f store.Fields) { f["Trade Date"] = "15/01/2024" }, FieldTradeDate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)

			_, err := n.Normalize(record("bad", fields), 0, nil)

			var malformed *MalformedRecordError
			if !errors.As(err, &malformed) {
				t.Fatalf("error = %v, want *MalformedRecordError", err)
			}
			if malformed.Field != tt.field {
				t.Errorf("Field = %q, want %q", malformed.Field, tt.field)
			}
			if malformed.RecordID != "bad" {
				t.Errorf("RecordID = %q, want %q", malformed.RecordID, "bad")
			}

			var mismatch *SchemaMismatchError
			if got := errors.As(err, &mismatch); got != tt.schemaErr {
				t.Errorf("schema mismatch = %v, want %v", got, tt.schemaErr)
			}
		})
	}
}

func TestNormalizeAllKeepsGoing(t *testing.T) {
	n := NewNormalizer(DefaultSchema(), nil)

	bad := validFields()
	bad["Quantity"] = "abc"

	records := []store.Record{
		record("r1", validFields()),
		record("r2", bad),
		record("r3", validFields()),
	}

	result := n.NormalizeAll(records, logger.NewOnce(nil))

	if len(result.Trades) != 2 {
		t.Fatalf("Trades = %d, want 2", len(result.Trades))
	}
	if len(result.Rejections) != 1 {
		t.Fatalf("Rejections = %d, want 1", len(result.Rejections))
	}
	if result.Rejections[0].RecordID != "r2" {
		t.Errorf("rejected record = %q, want r2", result.Rejections[0].RecordID)
	}
	if result.Trades[0].Seq != 0 || result.Trades[1].Seq != 2 {
		t.Errorf("Seq = %d,%d, want 0,2", result.Trades[0].Seq, result.Trades[1].Seq)
	}
}

func TestBadConfidenceWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	once := logger.NewOnce(zap.New(core))
	n := NewNormalizer(DefaultSchema(), nil)

	var records []store.Record
	for _, c := range []any{"high", 11, -1} {
		f := validFields()
		f["Signal Confidence"] = c
		records = append(records, record("r", f))
	}

	result := n.NormalizeAll(records, once)

	if len(result.Trades) != 3 {
		t.Fatalf("Trades = %d, want 3", len(result.Trades))
	}
	for i, trade := range result.Trades {
		if trade.SignalConfidence != nil {
			t.Errorf("trade %d SignalConfidence = %s, want nil", i, trade.SignalConfidence)
		}
	}
	if got := logs.FilterMessage("ignoring unusable signal confidence values").Len(); got != 1 {
		t.Errorf("warnings = %d, want 1", got)
	}
}
