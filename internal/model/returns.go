package model

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// ReturnType is the declared type of an action output or argument.
type ReturnType string

const (
	TypeInt       ReturnType = "int"
	TypeString    ReturnType = "string"
	TypeBool      ReturnType = "bool"
	TypeFile      ReturnType = "file"
	TypeDirectory ReturnType = "directory"
)

// ParseReturnType parses a type name, case-insensitively.
func ParseReturnType(s string) (ReturnType, error) {
	switch ReturnType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeInt:
		return TypeInt, nil
	case TypeString:
		return TypeString, nil
	case TypeBool:
		return TypeBool, nil
	case TypeFile:
		return TypeFile, nil
	case TypeDirectory:
		return TypeDirectory, nil
	}
	return "", fmt.Errorf("invalid return type %q (valid: int, string, bool, file, directory)", s)
}

// CtyType maps a declared type onto its cty representation. file and
// directory values travel as strings; the path existence check happens when
// outputs are parsed.
func (t ReturnType) CtyType() cty.Type {
	switch t {
	case TypeInt:
		return cty.Number
	case TypeBool:
		return cty.Bool
	default:
		return cty.String
	}
}

// IsPath reports whether values of this type must reference an existing
// filesystem entry on completion.
func (t ReturnType) IsPath() bool {
	return t == TypeFile || t == TypeDirectory
}

// ReturnDeclaration is a declared output of an action version. The value
// expression is the source-level text; it is evaluated by the script
// runtime, never by the core.
type ReturnDeclaration struct {
	Name            string
	Type            ReturnType
	ValueExpression string
	Location        SourceLocation
}

func (r ReturnDeclaration) String() string {
	return fmt.Sprintf("%s:%s=%s", r.Name, r.Type, r.ValueExpression)
}
