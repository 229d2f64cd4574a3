// Package model defines the domain entities of a parsed definitions
// document: actions and their versions, axes, arguments, flags, return
// declarations, script expansions, and execution contexts.
//
// The package is a leaf: it holds data and the small amount of behavior
// that belongs to the data (version selection, context reduction), and
// knows nothing about parsing, planning, or execution.
package model
