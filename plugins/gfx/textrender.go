// textrender.go is the framebuffer text renderer's glyph rasterizer
// (SPEC_FULL.md §C): it turns a rune into a cached alpha mask via
// golang/freetype, for gfx.Plugin's CmdDrawGlyph to composite onto the
// canvas in the caller's chosen color.
package gfx

import (
	"image"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// glyphPointSize is the fixed rasterization size; the legacy VGA cell
// grid and framebuffer console both use one font size, so there is no
// need to cache more than one size per rune.
const glyphPointSize = 14

// glyphCache rasterizes runes to alpha masks on first use and keeps them,
// since re-rasterizing the same character every frame would dominate the
// cost of an otherwise cheap rect/line draw command.
type glyphCache struct {
	font  *truetype.Font
	cells map[rune]*renderedGlyph
}

type renderedGlyph struct {
	mask    *image.Alpha
	advance int
}

// newGlyphCache parses the embedded Go Regular font (golang.org/x/image's
// gofont package, pulled in the same way the teacher's go.mod pulls
// golang.org/x/image transitively through gg) once at construction.
func newGlyphCache() *glyphCache {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		// goregular.TTF is a compiled-in byte constant: a parse failure
		// here means the embedded font itself is corrupt, not a runtime
		// condition a caller could meaningfully recover from.
		panic("gfx: embedded font failed to parse: " + err.Error())
	}
	return &glyphCache{font: f, cells: map[rune]*renderedGlyph{}}
}

// rasterize returns ch's alpha mask (nil for characters with no visible
// ink, e.g. space) and its horizontal advance in pixels.
func (c *glyphCache) rasterize(ch rune) (*image.Alpha, int) {
	if g, ok := c.cells[ch]; ok {
		return g.mask, g.advance
	}

	face := truetype.NewFace(c.font, &truetype.Options{Size: glyphPointSize, DPI: 72})
	defer face.Close()

	advF, ok := face.GlyphAdvance(ch)
	advance := glyphPointSize
	if ok {
		advance = int(advF >> 6)
	}

	bounds, _, ok := face.GlyphBounds(ch)
	if !ok || bounds.Max.X <= bounds.Min.X || bounds.Max.Y <= bounds.Min.Y {
		c.cells[ch] = &renderedGlyph{advance: advance}
		return nil, advance
	}

	w := int((bounds.Max.X - bounds.Min.X) >> 6)
	h := int((bounds.Max.Y - bounds.Min.Y) >> 6)
	mask := image.NewAlpha(image.Rect(0, 0, w+1, h+1))

	fc := freetype.NewContext()
	fc.SetDPI(72)
	fc.SetFont(c.font)
	fc.SetFontSize(glyphPointSize)
	fc.SetClip(mask.Bounds())
	fc.SetDst(mask)
	fc.SetSrc(image.White)

	baselineY := int((bounds.Max.Y) >> 6)
	pt := fixed.Point26_6{X: fixed.I(0) - bounds.Min.X, Y: fixed.I(baselineY)}
	fc.DrawString(string(ch), pt)

	g := &renderedGlyph{mask: mask, advance: advance}
	c.cells[ch] = g
	return mask, advance
}

// compositeGlyph draws mask onto dst at (x, y) tinted with the uniform
// color c, bypassing gg.Context's own fill-color path (DrawImage would
// composite the mask's own pixels rather than tint them).
func compositeGlyph(dst draw.Image, mask *image.Alpha, x, y int, c image.Image) {
	if mask == nil {
		return
	}
	r := mask.Bounds().Add(image.Pt(x, y))
	draw.DrawMask(dst, r, c, image.Point{}, mask, image.Point{}, draw.Over)
}
