//go:build debug

package core

import "fmt"

// Assert panics when cond is false. Debug builds treat broken invariants as
// programming errors.
func Assert(cond bool, msg string, args ...interface{}) bool {
	if !cond {
		panic(fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(msg, args...)))
	}
	return true
}
