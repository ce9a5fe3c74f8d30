//go:build windows

package detect

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
)

const dwmwaCloaked = 14

func visibleWindows(ctx context.Context) ([]Window, error) {
	var out []Window
	cb := windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if ctx.Err() != nil {
			return 0
		}
		if !windows.IsWindowVisible(hwnd) {
			return 1
		}
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
			return 1
		}
		var cloaked uint32
		_ = windows.DwmGetWindowAttribute(hwnd, dwmwaCloaked, unsafe.Pointer(&cloaked), uint32(unsafe.Sizeof(cloaked)))

		buf := make([]uint16, 256)
		n, _ := windows.GetWindowText(hwnd, &buf[0], int32(len(buf)))
		out = append(out, Window{
			PID:     int32(pid),
			Title:   windows.UTF16ToString(buf[:n]),
			Cloaked: cloaked != 0,
		})
		return 1
	})
	if err := windows.EnumWindows(cb, nil); err != nil && ctx.Err() == nil {
		return out, err
	}
	return out, ctx.Err()
}
