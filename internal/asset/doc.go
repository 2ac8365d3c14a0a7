// Package asset defines computation units, the static dependency graph that
// connects them, and the jobs that select parts of that graph for execution.
// Graph construction validates references and acyclicity once at startup;
// ResolveOrder produces a deterministic topological order for a selection.
package asset
