package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
)

var (
	errEmpty     = errors.New("empty value")
	errNonFinite = errors.New("non-finite number")
)

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, errEmpty
		}
		return *x, nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, errNonFinite
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, errNonFinite
		}
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero, errEmpty
		}
		return decimal.NewFromString(s)
	case nil:
		return decimal.Zero, errEmpty
	default:
		return decimal.Zero, fmt.Errorf("unsupported number type %T", v)
	}
}

// toDate keeps the calendar date as written, in the value's own offset.
func toDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return domain.DateOf(x), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, errEmpty
		}
		return domain.DateOf(*x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, errEmpty
		}
		if t, err := time.Parse(domain.DateLayout, s); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized date %q", s)
		}
		return domain.DateOf(t), nil
	case nil:
		return time.Time{}, errEmpty
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case fmt.Stringer:
		return strings.TrimSpace(x.String()), nil
	case nil:
		return "", errEmpty
	default:
		return "", fmt.Errorf("unsupported text type %T", v)
	}
}

func toAction(v any) (domain.Action, error) {
	s, err := toString(v)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(s) {
	case "buy":
		return domain.ActionBuy, nil
	case "sell":
		return domain.ActionSell, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}
