// Package gfx is the graphics/window service (spec.md §4.8, §6's
// framebuffer protocol): a canvas backing the Multiboot2 framebuffer tag's
// 32-bit ARGB memory-mapped region, with plugin-id commands to clear the
// canvas and draw rects, lines, and single glyphs.
//
// Grounded in the teacher's gg_circle_qemu.go (src/mazboot/golang/main):
// a lazily-sized gg.Context rendering into an in-memory RGBA backbuffer
// that is then flushed into the real framebuffer by a simple byte copy.
// This plugin keeps that same "draw into gg.Context, flush to a raw byte
// region" shape, with the raw region modeled as a plain []byte instead of
// an MMIO store loop (spec.md Design Notes: keep unchecked address
// arithmetic out of ordinary modules).
package gfx

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/fogleman/gg"

	"fernos/internal/hps"
	"fernos/internal/kerr"
)

const (
	// CmdInit (re)sizes the canvas to width a0 × height a1, clearing it to
	// black. Must precede any drawing command.
	CmdInit uint16 = iota
	// CmdClear fills the canvas with the packed 0xRRGGBB color in a0.
	CmdClear
	// CmdDrawRect draws a filled rectangle: (x, y) packed into a0 as
	// (low16, high16), (w, h) packed the same way into a1, color in a2.
	CmdDrawRect
	// CmdDrawLine draws a line from (x0,y0) packed in a0 to (x1,y1) packed
	// in a1, with color a2 and stroke width a3 (0 defaults to 1).
	CmdDrawLine
	// CmdDrawGlyph rasterizes the single rune a2 at (x,y) packed in a0,
	// in color a1, via textrender.go's glyph cache.
	CmdDrawGlyph
)

func unpack(v uint32) (lo, hi int) { return int(v & 0xFFFF), int(v >> 16) }

func unpackColor(rgb uint32) color.RGBA {
	return color.RGBA{R: byte(rgb >> 16), G: byte(rgb >> 8), B: byte(rgb), A: 0xFF}
}

// Plugin is the graphics service's plugin-id collaborator: one canvas,
// sized by CmdInit to match the framebuffer tag's (width, height).
type Plugin struct {
	hps.BasePlugin

	ctx    *gg.Context
	glyphs *glyphCache
}

// NewPlugin constructs the graphics plugin with no canvas yet allocated;
// CmdInit must run first (mirroring the teacher's initGGContext being a
// no-op until the framebuffer tag's dimensions are known).
func NewPlugin(id int) *Plugin {
	return &Plugin{BasePlugin: hps.NewBasePlugin(id, "gfx"), glyphs: newGlyphCache()}
}

func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id == CmdInit {
		w, _ := unpack(a0)
		h, _ := unpack(a1)
		if w <= 0 || h <= 0 {
			return 0, kerr.New("gfx.Cmd", kerr.BAD_ARGS, nil)
		}
		p.ctx = gg.NewContext(w, h)
		return 0, nil
	}
	if p.ctx == nil {
		return 0, kerr.New("gfx.Cmd", kerr.INACTIVE, nil)
	}
	switch id {
	case CmdClear:
		p.ctx.SetColor(unpackColor(a0))
		p.ctx.Clear()
		return 0, nil

	case CmdDrawRect:
		x, y := unpack(a0)
		w, h := unpack(a1)
		p.ctx.SetColor(unpackColor(a2))
		p.ctx.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
		p.ctx.Fill()
		return 0, nil

	case CmdDrawLine:
		x0, y0 := unpack(a0)
		x1, y1 := unpack(a1)
		width := a3
		if width == 0 {
			width = 1
		}
		p.ctx.SetColor(unpackColor(a2))
		p.ctx.SetLineWidth(float64(width))
		p.ctx.DrawLine(float64(x0), float64(y0), float64(x1), float64(y1))
		p.ctx.Stroke()
		return 0, nil

	case CmdDrawGlyph:
		x, y := unpack(a0)
		mask, advance := p.glyphs.rasterize(rune(a2))
		dst, ok := p.ctx.Image().(draw.Image)
		if ok {
			compositeGlyph(dst, mask, x, y, image.NewUniform(unpackColor(a1)))
		}
		return uint32(advance), nil

	default:
		return 0, kerr.New("gfx.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
}

// ARGBBytes flushes the canvas into the raw 32-bit ARGB byte layout the
// Multiboot2 framebuffer tag describes (spec.md §6): row-major, 4 bytes
// per pixel, pitch == width*4 — the same "simple store" the teacher's
// flush-to-Bochs-framebuffer step performs, returned here as a plain
// slice instead of a write into simulated MMIO.
func (p *Plugin) ARGBBytes() []byte {
	if p.ctx == nil {
		return nil
	}
	img := p.ctx.Image()
	b := img.Bounds()
	out := make([]byte, b.Dx()*b.Dy()*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out[i] = byte(a >> 8)
			out[i+1] = byte(r >> 8)
			out[i+2] = byte(g >> 8)
			out[i+3] = byte(bl >> 8)
			i += 4
		}
	}
	return out
}

// Dimensions reports the current canvas size, or (0,0) before CmdInit.
func (p *Plugin) Dimensions() (width, height int) {
	if p.ctx == nil {
		return 0, 0
	}
	b := p.ctx.Image().Bounds()
	return b.Dx(), b.Dy()
}
