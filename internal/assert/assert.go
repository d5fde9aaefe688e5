// Package assert holds the engine's programmer-error guards (spec §7:
// "InvalidArgument ... treated as programmer errors").
package assert

import "fmt"

// That panics with msg if cond is false. Used at API boundaries for
// conditions the caller controls (non-finite px_per_sec, height < 1,
// inverted amp_range, negative dB_range, empty id lists).
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
