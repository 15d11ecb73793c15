// Package flock provides cross-platform file locking utilities.
//
// The vault's activity log is appended to by the orchestrator and the
// dispatcher from separate processes. This package provides the exclusive,
// non-blocking file locks that keep those appends from interleaving, on
// both Unix and Windows systems.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - file is in use
//	}
//	defer flock.Unlock(file.Fd())
package flock
