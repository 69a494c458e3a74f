package enhance

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func gradient(w, h int) func(x, y int) color.RGBA {
	return func(x, y int) color.RGBA {
		return color.RGBA{
			R: uint8(x * 255 / max(w-1, 1)),
			G: uint8(y * 255 / max(h-1, 1)),
			B: uint8((x + y) * 127 / max(w+h-2, 1)),
			A: 0xff,
		}
	}
}

func solid(v uint8) func(x, y int) color.RGBA {
	return func(int, int) color.RGBA { return color.RGBA{R: v, G: v, B: v, A: 0xff} }
}

func decodeOutput(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err, "output must decode")
	assert.Equal(t, "jpeg", format, "output is always JPEG")
	return img
}

func meanBrightness(img image.Image) float64 {
	b := img.Bounds()
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += float64(r>>8+g>>8+bl>>8) / 3
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

func newEnhancer(t *testing.T, alg Algorithm) *Enhancer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Algorithm = alg
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestEnhancePreservesDimensions(t *testing.T) {
	sizes := []struct{ w, h int }{{1, 1}, {4, 4}, {17, 9}, {64, 48}, {3, 130}}
	for _, alg := range []Algorithm{ContrastGamma, ToneMapDrago} {
		e := newEnhancer(t, alg)
		for _, s := range sizes {
			input := encodePNG(t, s.w, s.h, gradient(s.w, s.h))
			out, err := e.Enhance(input)
			require.NoError(t, err, "%s %dx%d", alg, s.w, s.h)

			b := decodeOutput(t, out).Bounds()
			assert.Equal(t, s.w, b.Dx(), "%s width", alg)
			assert.Equal(t, s.h, b.Dy(), "%s height", alg)
		}
	}
}

func TestEnhanceAcceptsJPEGInput(t *testing.T) {
	input := encodeJPEG(t, 40, 30, gradient(40, 30))
	for _, alg := range []Algorithm{ContrastGamma, ToneMapDrago} {
		out, err := newEnhancer(t, alg).Enhance(input)
		require.NoError(t, err)
		b := decodeOutput(t, out).Bounds()
		assert.Equal(t, image.Rect(0, 0, 40, 30), b)
	}
}

func TestEnhanceIsDeterministic(t *testing.T) {
	input := encodeJPEG(t, 33, 21, gradient(33, 21))
	for _, alg := range []Algorithm{ContrastGamma, ToneMapDrago} {
		e := newEnhancer(t, alg)
		first, err := e.Enhance(input)
		require.NoError(t, err)
		second, err := e.Enhance(input)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, second), "%s output differs between runs", alg)
	}
}

func TestEnhanceRejectsUndecodableInput(t *testing.T) {
	valid := encodeJPEG(t, 32, 32, gradient(32, 32))
	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": valid[:len(valid)/2],
		"header":    valid[:2],
	}
	e := newEnhancer(t, ContrastGamma)
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := e.Enhance(input)
			require.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, out)

			m, err := Decode(input, DefaultMaxDimension)
			require.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, m)
		})
	}
}

func TestEnhanceRejectsOversizedImage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDimension = 16
	e, err := New(cfg)
	require.NoError(t, err)

	out, err := e.Enhance(encodePNG(t, 32, 8, gradient(32, 8)))
	require.ErrorIs(t, err, ErrImageTooLarge)
	assert.Nil(t, out)

	_, err = e.Enhance(encodePNG(t, 16, 16, gradient(16, 16)))
	assert.NoError(t, err)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	e := newEnhancer(t, ContrastGamma)
	out, err := e.EnhanceWith(encodePNG(t, 4, 4, solid(128)), Algorithm("sepia"))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.Nil(t, out)

	_, err = New(Config{Algorithm: "sepia"})
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = ParseAlgorithm("")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm(" TONEMAP_DRAGO ")
	require.NoError(t, err)
	assert.Equal(t, ToneMapDrago, alg)

	alg, err = ParseAlgorithm("contrast_gamma")
	require.NoError(t, err)
	assert.Equal(t, ContrastGamma, alg)
}

func TestContrastGammaSolidGrayBrightens(t *testing.T) {
	input := encodePNG(t, 4, 4, solid(128))
	out, err := newEnhancer(t, ContrastGamma).Enhance(input)
	require.NoError(t, err)

	img := decodeOutput(t, out)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	assert.Greater(t, meanBrightness(img), 128.0, "gamma < 1 must not darken sub-maximal input")
}

func TestGammaBrightensMidTones(t *testing.T) {
	m := NewPixelMatrix(2, 1)
	copy(m.Pix, []uint8{0, 64, 128, 200, 255, 255})
	applyGamma(m, 0.8)

	assert.Equal(t, uint8(0), m.Pix[0])
	assert.Greater(t, m.Pix[1], uint8(64))
	assert.Greater(t, m.Pix[2], uint8(128))
	assert.Greater(t, m.Pix[3], uint8(200))
	assert.Equal(t, uint8(255), m.Pix[4])
}

func TestToneMapDragoAllBlack(t *testing.T) {
	input := encodePNG(t, 16, 12, solid(0))
	out, err := newEnhancer(t, ToneMapDrago).Enhance(input)
	require.NoError(t, err)

	img := decodeOutput(t, out)
	assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())
	assert.LessOrEqual(t, meanBrightness(img), 2.0)
}

func TestDragoPathologicalMatrices(t *testing.T) {
	cases := map[string]func(m *PixelMatrix){
		"black": func(m *PixelMatrix) {},
		"white": func(m *PixelMatrix) {
			for i := range m.Pix {
				m.Pix[i] = 255
			}
		},
		"single_bright_pixel": func(m *PixelMatrix) {
			m.Pix[0], m.Pix[1], m.Pix[2] = 255, 255, 255
		},
		"pure_red": func(m *PixelMatrix) {
			for i := 0; i < len(m.Pix); i += 3 {
				m.Pix[i] = 255
			}
		},
	}
	for name, fill := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewPixelMatrix(5, 3)
			fill(m)
			applyDrago(m, DefaultParams())
			assert.Equal(t, 5, m.Width)
			assert.Equal(t, 3, m.Height)
			assert.Len(t, m.Pix, 5*3*3)

			out, err := Encode(m, 0)
			require.NoError(t, err)
			decodeOutput(t, out)
		})
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want float32
	}{
		{math32.NaN(), 0},
		{math32.Inf(1), 1},
		{math32.Inf(-1), 0},
		{0.25, 0.25},
		{0, 0},
	}
	for _, tc := range cases {
		got := sanitize(tc.in)
		assert.Equal(t, tc.want, got)
		assert.False(t, math32.IsNaN(got) || math32.IsInf(got, 0))
	}
}

func TestLinearTonemapIgnoresNonFiniteExtrema(t *testing.T) {
	img := []float32{math32.NaN(), 0.2, math32.Inf(1), 0.6, math32.Inf(-1)}
	linearTonemap(img, 1)

	assert.InDelta(t, 0.0, img[1], 1e-6)
	assert.InDelta(t, 1.0, img[3], 1e-6)
	for _, v := range img {
		s := sanitize(v)
		assert.False(t, math32.IsNaN(s) || math32.IsInf(s, 0))
		assert.GreaterOrEqual(t, s, float32(0))
		assert.LessOrEqual(t, s, float32(1))
	}
}

func TestEncodeRejectsInvalidMatrix(t *testing.T) {
	_, err := Encode(&PixelMatrix{Width: 2, Height: 2, Pix: make([]uint8, 3)}, 95)
	require.ErrorIs(t, err, ErrEncode)

	_, err = Encode(nil, 95)
	require.ErrorIs(t, err, ErrEncode)
}

func TestDecodeKeepsRGBOrder(t *testing.T) {
	red := func(int, int) color.RGBA { return color.RGBA{R: 255, A: 0xff} }
	m, err := Decode(encodePNG(t, 3, 2, red), 0)
	require.NoError(t, err)
	require.Equal(t, 3, m.Width)
	require.Equal(t, 2, m.Height)
	r0, g0, b0 := m.At(2, 1)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{r0, g0, b0})

	out, err := Encode(m, 95)
	require.NoError(t, err)
	r, g, b, _ := decodeOutput(t, out).At(1, 1).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
	assert.Less(t, b>>8, uint32(60))
}

func TestDefaultDragoParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, float32(0.7), p.DragoBias)
	assert.Equal(t, float32(1.0), p.DragoGamma)
	assert.Equal(t, float32(0.7), p.DragoSaturation)
}
