package model

// ArgumentDefinition declares a CLI argument available to scripts as
// ${args.<name>}. Arguments without a default are mandatory once
// referenced.
type ArgumentDefinition struct {
	Name        string
	Type        ReturnType
	Default     *string
	Description string
	Location    SourceLocation
}

// Mandatory reports whether the argument must be bound on the CLI.
func (a ArgumentDefinition) Mandatory() bool {
	return a.Default == nil
}

// FlagDefinition declares a boolean CLI flag available to scripts as
// ${flags.<name>}. Flags default to false.
type FlagDefinition struct {
	Name        string
	Description string
	Location    SourceLocation
}
