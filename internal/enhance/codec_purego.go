//go:build !cgo

package enhance

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Decode parses a compressed image into a PixelMatrix. The header is checked
// against maxDimension before any pixel data is decoded.
func Decode(data []byte, maxDimension int) (*PixelMatrix, error) {
	if err := checkHeader(data, maxDimension); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, b.Dx(), b.Dy())
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *PixelMatrix {
	b := img.Bounds()
	m := NewPixelMatrix(b.Dx(), b.Dy())
	i := 0
	switch src := img.(type) {
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.YCbCrAt(x, y)
				r, g, bb, _ := c.RGBA()
				m.Pix[i], m.Pix[i+1], m.Pix[i+2] = uint8(r>>8), uint8(g>>8), uint8(bb>>8)
				i += 3
			}
		}
	default:
		// Alpha is dropped; samples are taken from the premultiplied value.
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bb, _ := img.At(x, y).RGBA()
				m.Pix[i], m.Pix[i+1], m.Pix[i+2] = uint8(r>>8), uint8(g>>8), uint8(bb>>8)
				i += 3
			}
		}
	}
	return m
}

// Image converts the matrix to an opaque *image.RGBA.
func (m *PixelMatrix) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for p, q := 0, 0; p < len(m.Pix); p, q = p+3, q+4 {
		img.Pix[q] = m.Pix[p]
		img.Pix[q+1] = m.Pix[p+1]
		img.Pix[q+2] = m.Pix[p+2]
		img.Pix[q+3] = 0xff
	}
	return img
}

// Encode writes m as JPEG. A quality of zero uses the encoder default.
func Encode(m *PixelMatrix, quality int) ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: invalid pixel matrix", ErrEncode)
	}
	var opts *jpeg.Options
	if quality > 0 {
		opts = &jpeg.Options{Quality: quality}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m.Image(), opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// contrastGamma is the pure Go ContrastGamma used when cgo is disabled:
// 8-bit Lab conversion, CLAHE on L, back to RGB, gamma.
func contrastGamma(input []byte, maxDimension int, p Params) ([]byte, error) {
	m, err := Decode(input, maxDimension)
	if err != nil {
		return nil, err
	}
	lab := rgbToLab(m)
	claheInPlace(lab.l, m.Width, m.Height, p.TileGridX, p.TileGridY, p.ClipLimit)
	labToRGB(lab, m)
	applyGamma(m, p.Gamma)
	return Encode(m, p.JPEGQuality)
}
