//go:build gui

package main

import (
	"runtime"

	"murmur/capture"
	"murmur/gui"
)

func initGUI() {
	// fyne and glfw need the thread main started on
	runtime.LockOSThread()

	g := gui.NewApp(run)
	guiDisplay = &display{
		overlay:      g.Overlay(),
		notification: g.Notification(),
		events:       g,
		quit:         g.Quit,
		done:         g.Done(),
		bindMenu: func(a *app) {
			g.SetMenu(gui.Menu{
				Record: func(ch capture.Channel) {
					if ch == capture.ChannelDesktop {
						a.click(trigDesktop)
						return
					}
					a.click(trigMicrophone)
				},
				CopyLast:    func() { a.click(trigCopyLast) },
				Explanation: func() { a.click(trigExplanation) },
				Hide:        func() { a.click(trigHide) },
			})
		},
	}
	if err := gui.Run(g); err != nil {
		panic(err)
	}
}
