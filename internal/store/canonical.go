package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Canonical reduces a field value to the representation used for storage and
// equality filters: decimals become their exact string form, times become a
// calendar date, other numbers go through decimal. NaN and infinities are
// kept as their text so readers reject them.
func Canonical(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool:
		return x
	case decimal.Decimal:
		return x.String()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.String()
	case time.Time:
		return x.Format(dateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(dateLayout)
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d.String()
		}
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return decimal.NewFromFloat(x).String()
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 32)
		}
		return decimal.NewFromFloat32(x).String()
	case int:
		return decimal.NewFromInt(int64(x)).String()
	case int32:
		return decimal.NewFromInt32(x).String()
	case int64:
		return decimal.NewFromInt(x).String()
	default:
		return fmt.Sprint(x)
	}
}

func CanonicalFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = Canonical(v)
	}
	return out
}

// Matches reports whether every criterion equals the corresponding field.
func Matches(f Fields, c Criteria) bool {
	for k, want := range c {
		got, ok := f[k]
		if !ok {
			return false
		}
		if Canonical(got) != Canonical(want) {
			return false
		}
	}
	return true
}
