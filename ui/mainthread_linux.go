//go:build linux

package ui

func MainThread() *Loop {
	return NewLoop(nil)
}
