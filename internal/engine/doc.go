// Package engine runs jobs over the asset graph. A run resolves the job's
// execution order, resolves every asset's configuration up front, then
// executes assets one at a time in dependency order, handing each asset the
// outputs of its upstreams and the resource handles it declares. Failures are
// isolated to the failing asset and its downstream closure; resources are
// released once when the run ends.
package engine
