package enhance

import (
	"github.com/chewxy/math32"
)

// minLuminance floors luminance before taking logarithms.
const minLuminance = 1e-4

// applyDrago tone-maps m in place with the Drago adaptive logarithmic
// operator followed by a linear rescale and gamma stage.
func applyDrago(m *PixelMatrix, p Params) {
	n := m.Width * m.Height
	img := make([]float32, n*3)
	for i, v := range m.Pix {
		img[i] = float32(v) / 255
	}

	lum := make([]float32, n)
	var logSum float64
	for i := 0; i < n; i++ {
		l := 0.299*img[i*3] + 0.587*img[i*3+1] + 0.114*img[i*3+2]
		lum[i] = l
		logSum += float64(math32.Log(max(l, minLuminance)))
	}
	mean := math32.Exp(float32(logSum / float64(n)))

	var lmax float32
	for i := range lum {
		lum[i] /= mean
		if lum[i] > lmax {
			lmax = lum[i]
		}
	}

	// lmax is zero for an all-black image; the divisions below then yield
	// NaN, which sanitize maps to 0.
	biasExp := math32.Log(p.DragoBias) / math32.Log(0.5)
	for i := 0; i < n; i++ {
		l := lum[i]
		mapped := math32.Log(l+1) / math32.Log(2+8*math32.Pow(l/lmax, biasExp))
		for c := 0; c < 3; c++ {
			v := img[i*3+c] / l
			img[i*3+c] = math32.Pow(v, p.DragoSaturation) * mapped
		}
	}

	linearTonemap(img, p.DragoGamma)

	for i, v := range img {
		m.Pix[i] = clampRound(float64(sanitize(v) * 255))
	}
}

// linearTonemap rescales img to [0,1] by its finite extrema and applies
// 1/gamma. Non-finite samples are left for sanitize.
func linearTonemap(img []float32, gamma float32) {
	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, v := range img {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi-lo > 1e-7 {
		scale := 1 / (hi - lo)
		for i, v := range img {
			img[i] = (v - lo) * scale
		}
	}
	if gamma != 1 {
		inv := 1 / gamma
		for i, v := range img {
			img[i] = math32.Pow(v, inv)
		}
	}
}

// sanitize replaces NaN with 0, +Inf with 1 and -Inf with 0.
func sanitize(v float32) float32 {
	switch {
	case math32.IsNaN(v):
		return 0
	case math32.IsInf(v, 1):
		return 1
	case math32.IsInf(v, -1):
		return 0
	}
	return v
}
