//go:build !windows

package detect

import "context"

// No portable top-level window list exists outside Windows; the process
// check alone covers these platforms.
func visibleWindows(context.Context) ([]Window, error) {
	return nil, nil
}
