// Package graph materializes the dependency graph of a run: one node per
// (action, reduced context) pair, with strong, weak, and soft edges.
//
// Nodes reference each other by key, not by pointer; the graph is an arena
// keyed by node id, which keeps edge storage free of ownership cycles.
package graph
