package hotkey

import "golang.design/x/hotkey/mainthread"

// Run calls fn with the main thread reserved for the macOS event loop, which
// hotkey registration needs.
func Run(fn func()) { mainthread.Init(fn) }
