package model

// DependencyDeclaration is an explicit dep/weak/soft pseudo-command parsed
// out of a script.
type DependencyDeclaration struct {
	ActionName string
	Weak       bool
	Soft       bool
	// Retainer names the retainer action of a soft dependency; empty
	// otherwise.
	Retainer string
	Location SourceLocation
}
