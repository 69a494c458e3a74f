//go:build !cgo

package enhance

import "math"

// labPlanes holds an image in 8-bit CIE L*a*b*: L scaled to [0,255],
// a and b offset by 128.
type labPlanes struct {
	l, a, b []uint8
}

// D65 reference white.
const (
	whiteX = 0.950456
	whiteZ = 1.088754

	labEpsilon = 0.008856
	labKappa   = 903.3
)

// srgbLinear maps an 8-bit sRGB sample to linear light. Read-only after init.
var srgbLinear = func() [256]float64 {
	var t [256]float64
	for i := range t {
		c := float64(i) / 255
		if c <= 0.04045 {
			t[i] = c / 12.92
		} else {
			t[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}
	return t
}()

func labF(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(f float64) float64 {
	if c := f * f * f; c > labEpsilon {
		return c
	}
	return (f - 16.0/116.0) / 7.787
}

func srgbCompand(c float64) float64 {
	if c <= 0.0031308 {
		c *= 12.92
	} else {
		c = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return math.Min(math.Max(c, 0), 1)
}

func rgbToLab(m *PixelMatrix) labPlanes {
	n := m.Width * m.Height
	out := labPlanes{l: make([]uint8, n), a: make([]uint8, n), b: make([]uint8, n)}
	for i := 0; i < n; i++ {
		r := srgbLinear[m.Pix[i*3]]
		g := srgbLinear[m.Pix[i*3+1]]
		bl := srgbLinear[m.Pix[i*3+2]]

		x := (0.412453*r + 0.357580*g + 0.180423*bl) / whiteX
		y := 0.212671*r + 0.715160*g + 0.072169*bl
		z := (0.019334*r + 0.119193*g + 0.950227*bl) / whiteZ

		var L float64
		if y > labEpsilon {
			L = 116*math.Cbrt(y) - 16
		} else {
			L = labKappa * y
		}
		fy := labF(y)
		A := 500 * (labF(x) - fy)
		B := 200 * (fy - labF(z))

		out.l[i] = clampRound(L * 255 / 100)
		out.a[i] = clampRound(A + 128)
		out.b[i] = clampRound(B + 128)
	}
	return out
}

func labToRGB(lab labPlanes, m *PixelMatrix) {
	for i := range lab.l {
		L := float64(lab.l[i]) * 100 / 255
		A := float64(lab.a[i]) - 128
		B := float64(lab.b[i]) - 128

		fy := (L + 16) / 116
		var y float64
		if L > labKappa*labEpsilon {
			y = fy * fy * fy
		} else {
			y = L / labKappa
		}
		x := whiteX * labFInv(fy+A/500)
		z := whiteZ * labFInv(fy-B/200)

		r := 3.240479*x - 1.537150*y - 0.498535*z
		g := -0.969256*x + 1.875991*y + 0.041556*z
		bl := 0.055648*x - 0.204043*y + 1.057311*z

		m.Pix[i*3] = clampRound(srgbCompand(r) * 255)
		m.Pix[i*3+1] = clampRound(srgbCompand(g) * 255)
		m.Pix[i*3+2] = clampRound(srgbCompand(bl) * 255)
	}
}
