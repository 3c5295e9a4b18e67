// Package imaging converts raw camera frames into the compressed format
// the remote verification endpoint accepts.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// Frame is an in-memory pixel buffer from the camera driver: row-major,
// 3 channels per pixel in BGR order (the layout the camera process emits).
type Frame struct {
	Width  int
	Height int
	Pixels []byte // len must be Width*Height*3
}

var errBadFrame = errors.New("frame dimensions do not match pixel buffer")

// EncodeJPEG converts a raw frame into JPEG bytes. A conversion failure is
// a local error — callers must not confuse it with a network failure.
func EncodeJPEG(f Frame, quality int) ([]byte, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) != f.Width*f.Height*3 {
		return nil, errBadFrame
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			src := (y*f.Width + x) * 3
			dst := img.PixOffset(x, y)
			// BGR → RGBA
			img.Pix[dst+0] = f.Pixels[src+2]
			img.Pix[dst+1] = f.Pixels[src+1]
			img.Pix[dst+2] = f.Pixels[src+0]
			img.Pix[dst+3] = 0xff
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
