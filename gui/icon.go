//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
)

const iconSize = 44

var (
	iconIdle = fyne.NewStaticResource("murmur-idle.png", renderIcon(nil, false))
	iconRec  = fyne.NewStaticResource("murmur-rec.png", renderIcon(&red, false))
	// shown while a screen capture tool is running
	iconWarn = fyne.NewStaticResource("murmur-warn.png", renderIcon(nil, true))

	red = color.RGBA{R: 255, G: 59, B: 48, A: 255}
)

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// renderIcon draws a black disc with an optional center dot and an optional
// yellow "!" badge in the bottom-right corner.
func renderIcon(dot *color.RGBA, badge bool) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	s := float64(iconSize)
	c, r, dotR := s/2, s/2-1, s/6.5
	for y := range iconSize {
		for x := range iconSize {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			switch {
			case dot != nil && d <= dotR:
				img.Set(x, y, dot)
			case d <= r:
				img.Set(x, y, color.Black)
			}
		}
	}
	if badge {
		drawBadge(img, s)
	}
	return encodePNG(img)
}

func drawBadge(img *image.RGBA, s float64) {
	badgeR := s * 0.34
	bx, by := s-badgeR+0.5, s-badgeR+0.5
	dark := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	yellow := color.RGBA{R: 255, G: 204, B: 0, A: 255}
	halfW := badgeR * 0.24
	for y := range iconSize {
		for x := range iconSize {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if math.Hypot(fx-bx, fy-by) > badgeR {
				continue
			}
			ly := (fy - (by - badgeR*0.7)) / (badgeR * 1.4)
			lx := math.Abs(fx - bx)
			bar := lx <= halfW && ly >= 0.1 && ly <= 0.62
			point := lx <= halfW && ly >= 0.72 && ly <= 0.85
			if bar || point {
				img.Set(x, y, dark)
			} else {
				img.Set(x, y, yellow)
			}
		}
	}
}
