// Package resource manages shared external handles, such as database
// connections and object-store clients, for the duration of a single run.
// A Registry holds the static declarations; each run gets its own Provider
// that opens handles lazily on first use and releases them exactly once, in
// reverse acquisition order.
package resource
