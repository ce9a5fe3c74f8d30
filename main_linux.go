//go:build linux

package main

func main() {
	// before any cgo toolkit starts
	initCrashLog()

	if hasArg("gui") {
		initGUI()
		return
	}
	run()
}
