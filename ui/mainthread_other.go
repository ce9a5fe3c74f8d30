//go:build !linux

package ui

import "golang.design/x/hotkey/mainthread"

// MainThread runs posted closures on the process main thread, which the
// hotkey and window toolkits require on macOS and Windows.
func MainThread() *Loop {
	return NewLoop(mainthread.Call)
}
