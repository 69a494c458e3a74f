package enhance

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// PixelMatrix is a decoded image as interleaved 8-bit R, G, B samples in
// row-major order.
type PixelMatrix struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelMatrix allocates a zeroed w×h matrix.
func NewPixelMatrix(w, h int) *PixelMatrix {
	return &PixelMatrix{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
}

// At returns the RGB triple at (x, y).
func (m *PixelMatrix) At(x, y int) (r, g, b uint8) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

func (m *PixelMatrix) valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Pix) == m.Width*m.Height*3
}

// checkHeader reads only the image header and rejects empty, zero-sized or
// oversized input before any pixel data is decoded.
func checkHeader(data []byte, maxDimension int) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if maxDimension > 0 && (cfg.Width > maxDimension || cfg.Height > maxDimension) {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrImageTooLarge, cfg.Width, cfg.Height, maxDimension)
	}
	return nil
}

// gammaTable maps every 8-bit sample v to round(255·(v/255)^gamma).
func gammaTable(gamma float64) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampRound(math.Pow(float64(i)/255, gamma) * 255)
	}
	return lut
}

// applyGamma raises every normalized channel to gamma.
func applyGamma(m *PixelMatrix, gamma float64) {
	lut := gammaTable(gamma)
	for i, v := range m.Pix {
		m.Pix[i] = lut[v]
	}
}

// clampRound rounds v to the nearest integer and clips it to [0,255].
// NaN maps to 0.
func clampRound(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
