// Package debug holds the environment driven debug switches used across odoc.
//
// Each switch is read once at init from an ODOC_DEBUG_* variable and
// parsed with strconv.ParseBool. Library code only logs when the relevant
// switch is on, so production use stays silent.
package debug

import (
	"os"
	"strconv"
)

type debug struct {
	Parse bool
	Store bool
	Arena bool
	Lazy  bool
}

var d *debug

func init() {
	d = &debug{}
	d.Parse = boolEnv("ODOC_DEBUG_PARSE")
	d.Store = boolEnv("ODOC_DEBUG_STORE")
	d.Arena = boolEnv("ODOC_DEBUG_ARENA")
	d.Lazy = boolEnv("ODOC_DEBUG_LAZY")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

// Parse reports whether codec read events should be logged.
func Parse() bool {
	return d.Parse
}

// Store reports whether codec write events should be logged.
func Store() bool {
	return d.Store
}

func Arena() bool {
	return d.Arena
}

// Lazy reports whether incremental node materialization should be logged.
func Lazy() bool {
	return d.Lazy
}

// Set overrides the switches; it is meant for tests.
func Set(parse, store, arena, lazy bool) {
	d.Parse, d.Store, d.Arena, d.Lazy = parse, store, arena, lazy
}
