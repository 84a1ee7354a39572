//go:build !darwin

package hotkey

// Run calls fn.
func Run(fn func()) { fn() }
