package media

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	badgeBackground = color.RGBA{A: 178}
	badgeText       = color.White
)

const (
	badgeMargin  = 6
	badgePadding = 4
)

// drawBadge stamps label in the bottom-right corner of dst.
func drawBadge(dst draw.Image, label string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(badgeText), Face: face}

	width := d.MeasureString(label).Ceil()
	fm := face.Metrics()
	height := (fm.Ascent + fm.Descent).Ceil()

	b := dst.Bounds()
	box := image.Rect(
		b.Max.X-badgeMargin-width-2*badgePadding,
		b.Max.Y-badgeMargin-height-2*badgePadding,
		b.Max.X-badgeMargin,
		b.Max.Y-badgeMargin,
	)
	draw.Draw(dst, box, image.NewUniform(badgeBackground), image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I(box.Min.X + badgePadding),
		Y: fixed.I(box.Min.Y+badgePadding) + fm.Ascent,
	}
	d.DrawString(label)
}
