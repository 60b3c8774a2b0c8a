// Package procgroup runs external tools in their own process group so a
// timeout or cancel stops everything they spawned.
package procgroup
