//go:build !debug

package core

// Assert logs an error when cond is false and reports it back so the caller
// can skip the offending work instead of corrupting state.
func Assert(cond bool, msg string, args ...interface{}) bool {
	if !cond {
		getLogger().Helper()
		LogError("%s: "+msg, append([]interface{}{ErrInvariant}, args...)...)
	}
	return cond
}
