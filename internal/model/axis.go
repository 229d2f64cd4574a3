package model

import "fmt"

// AxisValue is one allowed value of an axis.
type AxisValue struct {
	Value     string
	IsDefault bool
}

// AxisDefinition declares an axis: an ordered set of allowed values with at
// most one default.
type AxisDefinition struct {
	Name     string
	Values   []AxisValue
	Location SourceLocation
}

// DefaultValue returns the default value, if any.
func (a *AxisDefinition) DefaultValue() (string, bool) {
	for _, v := range a.Values {
		if v.IsDefault {
			return v.Value, true
		}
	}
	return "", false
}

// HasValue reports whether value is in the allowed set.
func (a *AxisDefinition) HasValue(value string) bool {
	for _, v := range a.Values {
		if v.Value == value {
			return true
		}
	}
	return false
}

// ValueNames returns the allowed values in declaration order.
func (a *AxisDefinition) ValueNames() []string {
	names := make([]string, len(a.Values))
	for i, v := range a.Values {
		names[i] = v.Value
	}
	return names
}

// ValidateValue returns an error naming the allowed set when value is not
// one of them.
func (a *AxisDefinition) ValidateValue(value string) error {
	if a.HasValue(value) {
		return nil
	}
	return fmt.Errorf("invalid value %q for axis %q (valid: %s)", value, a.Name, joinValues(a.ValueNames()))
}

func joinValues(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
