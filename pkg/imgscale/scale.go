// Package imgscale resizes captured frames to thumbnail dimensions.
package imgscale

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const jpegQuality = 90

// ToJPEG decodes data (JPEG or PNG), scales it to width x height and
// re-encodes as JPEG. A zero width or height preserves the aspect
// ratio from the other dimension; both zero keeps the source size.
func ToJPEG(data []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("decode frame: empty image")
	}

	dstW, dstH := width, height
	switch {
	case dstW <= 0 && dstH <= 0:
		dstW, dstH = srcW, srcH
	case dstW <= 0:
		dstW = srcW * dstH / srcH
	case dstH <= 0:
		dstH = srcH * dstW / srcW
	}
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	var out image.Image = src
	if dstW != srcW || dstH != srcH {
		dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
