package embedserver

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // png decoder

	_ "golang.org/x/image/bmp" // bmp decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // webp decoder
)

const (
	jpegQuality = 90
	// maxPixels bounds the decoded size of an image that needs resizing.
	maxPixels   = 40_000_000
)

// downscale shrinks data so its longest side is at most maxSide and returns
// the bytes to upload with the applied scale factor. Images already small
// enough are returned untouched with scale 1.
func downscale(data []byte, maxSide int) ([]byte, float64, error) {
	if maxSide <= 0 {
		return data, 1, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image header: %w", err)
	}
	longest := max(cfg.Width, cfg.Height)
	if longest <= maxSide {
		return data, 1, nil
	}

	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, 0, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}
	scale := float64(maxSide) / float64(longest)
	bounds := img.Bounds()
	w := max(1, int(float64(bounds.Dx())*scale))
	h := max(1, int(float64(bounds.Dy())*scale))

	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), scale, nil
}
