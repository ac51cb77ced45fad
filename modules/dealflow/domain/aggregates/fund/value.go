package fund

import (
	"strconv"

	"github.com/guregu/null/v5"
)

// Value holds one attribute. The zero Value is absent.
type Value struct {
	text null.String
	num  null.Float
}

func Text(s string) Value {
	return Value{text: null.StringFrom(s)}
}

func Number(f float64) Value {
	return Value{num: null.FloatFrom(f)}
}

func (v Value) Valid() bool        { return v.text.Valid || v.num.Valid }
func (v Value) Text() null.String  { return v.text }
func (v Value) Number() null.Float { return v.num }

// Arg renders the value as a query argument for a column of the given kind.
func (v Value) Arg(k Kind) any {
	if k == KindNumber {
		return v.num
	}
	return v.text
}

func (v Value) String() string {
	switch {
	case v.text.Valid:
		return v.text.String
	case v.num.Valid:
		return strconv.FormatFloat(v.num.Float64, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON emits null, a string or a number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.num.Valid {
		return v.num.MarshalJSON()
	}
	return v.text.MarshalJSON()
}
