// Command fbconvert decodes a PNG/JPEG/BMP test fixture into the raw ARGB
// byte layout the gfx service's framebuffer protocol expects (spec.md §6,
// plugins/gfx.Plugin.ARGBBytes): width and height as little-endian uint32
// header fields, followed by width*height*4 bytes of pixel data in
// [A, R, G, B] row-major order with pitch == width*4.
//
// Adapted from the teacher's tools/imageconvert, which packed each pixel
// into a single little-endian 0xAARRGGBB uint32 (byte order B,G,R,A) for
// its own kernel-embedding format. fbconvert instead writes bytes directly
// in gfx's [A,R,G,B] order so a converted fixture can be loaded straight
// into a Plugin's canvas for comparison in tests.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/bmp"
)

func init() {
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fbconvert <input-image> <output-binary>\n")
		fmt.Fprintf(os.Stderr, "Converts a PNG/JPEG/BMP fixture into the gfx framebuffer's raw ARGB layout\n")
		fmt.Fprintf(os.Stderr, "Output format:\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: width (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: height (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  width*height*4 bytes: [A,R,G,B] pixel data, row-major\n")
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	inputPath, outputPath := flag.Arg(0), flag.Arg(1)

	in, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening image: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	img, format, err := image.Decode(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	fmt.Printf("Decoded %s image: %d x %d\n", format, width, height)

	out := make([]byte, 8+width*height*4)
	putUint32LE(out[0:4], uint32(width))
	putUint32LE(out[4:8], uint32(height))

	i := 8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out[i] = byte(a >> 8)
			out[i+1] = byte(r >> 8)
			out[i+2] = byte(g >> 8)
			out[i+3] = byte(b >> 8)
			i += 4
		}
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d bytes to %s\n", len(out), outputPath)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
