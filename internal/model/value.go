package model

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// CoerceValue converts a JSON-decoded value into a cty.Value of the
// declared type. The script runtimes already emit typed JSON (int as
// number, bool as boolean, everything else as string); anything that does
// not convert cleanly is a type mismatch.
func CoerceValue(t ReturnType, raw any) (cty.Value, error) {
	var v cty.Value
	switch x := raw.(type) {
	case nil:
		return cty.NilVal, fmt.Errorf("value is null, expected %s", t)
	case bool:
		v = cty.BoolVal(x)
	case float64:
		v = cty.NumberVal(big.NewFloat(x))
	case string:
		v = cty.StringVal(x)
	default:
		return cty.NilVal, fmt.Errorf("unsupported value %T, expected %s", raw, t)
	}

	converted, err := convert.Convert(v, t.CtyType())
	if err != nil {
		return cty.NilVal, fmt.Errorf("value %v does not satisfy declared type %s: %w", raw, t, err)
	}
	if t == TypeInt {
		f := converted.AsBigFloat()
		if !f.IsInt() {
			return cty.NilVal, fmt.Errorf("value %v is not an integer", raw)
		}
	}
	return converted, nil
}

// ValueToJSON renders a cty.Value into the plain Go value used in JSON
// documents: int to number, bool to boolean, everything else to string.
func ValueToJSON(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if i, acc := v.AsBigFloat().Int64(); acc == big.Exact {
			return i
		}
		return f
	case cty.Bool:
		return v.True()
	default:
		return v.AsString()
	}
}

// ValueToString renders a cty.Value the way script interpolation sees it.
func ValueToString(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return ""
	}
	switch v.Type() {
	case cty.Number:
		if i, acc := v.AsBigFloat().Int64(); acc == big.Exact {
			return fmt.Sprintf("%d", i)
		}
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.AsString()
	}
}
