// Package cli tokenizes the mdl command line.
//
// The grammar interleaves goal markers with scoped bindings:
//
//	mdl [global-opt|axis|arg|flag]* (:goal [axis|arg|flag]*)*
//
// Axis, argument, and flag tokens before the first :goal apply to every
// invocation; those after a goal bind to that invocation only and win over
// their global counterparts. Recognized options such as --dry-run are
// global wherever they appear.
package cli
