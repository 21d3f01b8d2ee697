// CLAUDE:SUMMARY Image capture normalization: decode, bounded downscale, PNG re-encode, 128px thumbnail.
// Package imaging turns raw clipboard image bytes into the PNG artifacts the
// store keeps: a size-capped full image and a small thumbnail.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const thumbSize = 128

// Result holds the processed artifacts for one image capture. Width and
// Height describe the capture as copied, before any downscale.
type Result struct {
	Data   []byte
	Thumb  []byte
	Width  int
	Height int
}

// Process decodes data, downscales it when its longer side exceeds maxDim
// (0 disables the cap), and re-encodes as PNG at the given quality. The
// thumbnail is rendered from the processed image; if that fails the Result
// carries a nil Thumb and the caller falls back to the full image.
func Process(data []byte, maxDim, quality int) (Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("imaging: decode: %w", err)
	}
	bounds := img.Bounds()
	res := Result{Width: bounds.Dx(), Height: bounds.Dy()}

	if maxDim > 0 && max(res.Width, res.Height) > maxDim {
		img = resize(img, maxDim, draw.CatmullRom)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: compressionLevel(quality)}
	if err := enc.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("imaging: encode: %w", err)
	}
	res.Data = buf.Bytes()

	var thumbBuf bytes.Buffer
	thumb := resize(img, thumbSize, draw.ApproxBiLinear)
	if err := png.Encode(&thumbBuf, thumb); err == nil {
		res.Thumb = thumbBuf.Bytes()
	}
	return res, nil
}

// resize scales img so its longer side equals size, preserving aspect
// ratio. Smaller images are scaled up.
func resize(img image.Image, size int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var nw, nh int
	if w > h {
		nw, nh = size, max(1, h*size/w)
	} else {
		nh, nw = size, max(1, w*size/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// compressionLevel maps the 1..100 quality setting onto PNG encoder
// levels. Quality 100 stores uncompressed; the default 85 favors speed.
func compressionLevel(quality int) png.CompressionLevel {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	level := ((100-quality)*9 + 49) / 99
	switch {
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level >= 8:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}
