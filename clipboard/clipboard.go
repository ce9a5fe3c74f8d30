// Package clipboard puts answers on the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrEmpty = errors.New("nothing to copy")

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	return cb.WriteAll(text)
}

// Available reports whether a clipboard backend was found (xclip, xsel or
// wl-clipboard on linux).
func Available() bool {
	return !cb.Unsupported
}
