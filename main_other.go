//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// before any cgo toolkit starts
	initCrashLog()

	if hasArg("gui") {
		initGUI() // takes the main thread, runs run() on a goroutine
		return
	}
	mainthread.Init(run)
}
