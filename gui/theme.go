//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// darkTheme keeps the overlay readable on top of any editor. The background
// is slightly translucent where the platform composites windows.
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 16, G: 18, B: 22, A: 235}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 214, G: 218, B: 224, A: 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 28, G: 31, B: 38, A: 255}
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 255, G: 175, B: 0, A: 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return 13
	}
	return theme.DefaultTheme().Size(name)
}
