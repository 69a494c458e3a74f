//go:build !cgo

package enhance

import "math"

const histBins = 256

// claheInPlace applies contrast-limited adaptive histogram equalization to a
// single 8-bit plane of size w×h using a gx×gy tile grid. When w or h is not a
// multiple of the grid, tiles are computed over a reflected border extension.
func claheInPlace(plane []uint8, w, h, gx, gy int, clipLimit float64) {
	tileW := (w + gx - 1) / gx
	tileH := (h + gy - 1) / gy
	tileArea := tileW * tileH

	clip := 0
	if clipLimit > 0 {
		clip = int(clipLimit * float64(tileArea) / histBins)
		if clip < 1 {
			clip = 1
		}
	}
	lutScale := float64(histBins-1) / float64(tileArea)

	luts := make([][histBins]uint8, gx*gy)
	var hist [histBins]int
	for ty := 0; ty < gy; ty++ {
		for tx := 0; tx < gx; tx++ {
			for i := range hist {
				hist[i] = 0
			}
			for y := ty * tileH; y < (ty+1)*tileH; y++ {
				row := reflect101(y, h) * w
				for x := tx * tileW; x < (tx+1)*tileW; x++ {
					hist[plane[row+reflect101(x, w)]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}
			lut := &luts[ty*gx+tx]
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = clampRound(float64(sum) * lutScale)
			}
		}
	}

	invTW := 1 / float64(tileW)
	invTH := 1 / float64(tileH)
	for y := 0; y < h; y++ {
		tyf := float64(y)*invTH - 0.5
		ty1 := int(math.Floor(tyf))
		ty2 := ty1 + 1
		ya := tyf - float64(ty1)
		ty1 = max(ty1, 0)
		ty2 = min(ty2, gy-1)
		for x := 0; x < w; x++ {
			txf := float64(x)*invTW - 0.5
			tx1 := int(math.Floor(txf))
			tx2 := tx1 + 1
			xa := txf - float64(tx1)
			tx1 = max(tx1, 0)
			tx2 = min(tx2, gx-1)

			v := plane[y*w+x]
			top := float64(luts[ty1*gx+tx1][v])*(1-xa) + float64(luts[ty1*gx+tx2][v])*xa
			bottom := float64(luts[ty2*gx+tx1][v])*(1-xa) + float64(luts[ty2*gx+tx2][v])*xa
			plane[y*w+x] = clampRound(top*(1-ya) + bottom*ya)
		}
	}
}

// clipHistogram caps every bin at limit and spreads the excess evenly.
func clipHistogram(hist *[histBins]int, limit int) {
	clipped := 0
	for i := range hist {
		if hist[i] > limit {
			clipped += hist[i] - limit
			hist[i] = limit
		}
	}
	batch := clipped / histBins
	residual := clipped - batch*histBins
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(histBins/residual, 1)
		for i := 0; i < histBins && residual > 0; i, residual = i+step, residual-1 {
			hist[i]++
		}
	}
}

// reflect101 maps an out-of-range index into [0,n) mirroring around the edge
// samples without repeating them (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
