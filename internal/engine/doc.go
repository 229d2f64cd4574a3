// Package engine executes a planned graph: a bounded worker pool renders
// scripts, supervises child processes, captures their streams, validates
// typed outputs, and persists per-node records in the run store.
//
// All run-scoped state (run directory, previous run, logger) lives on the
// Engine value constructed per invocation; there are no package-level
// singletons.
package engine
