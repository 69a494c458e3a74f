//go:build cgo

package enhance

import (
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"
)

// Decode parses a compressed image into a PixelMatrix through OpenCV. The
// header is checked against maxDimension before any pixel data is decoded.
func Decode(data []byte, maxDimension int) (*PixelMatrix, error) {
	bgr, err := decodeMat(data, maxDimension)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	m := &PixelMatrix{Width: rgb.Cols(), Height: rgb.Rows(), Pix: rgb.ToBytes()}
	if !m.valid() {
		return nil, fmt.Errorf("%w: unexpected %dx%d matrix of %d bytes", ErrDecode, m.Width, m.Height, len(m.Pix))
	}
	return m, nil
}

// Encode writes m as JPEG. A quality of zero uses the encoder default.
func Encode(m *PixelMatrix, quality int) ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: invalid pixel matrix", ErrEncode)
	}
	rgb, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8UC3, m.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)
	runtime.KeepAlive(m.Pix)

	return encodeMat(bgr, quality)
}

// contrastGamma runs ContrastGamma in OpenCV: BGR to 8-bit Lab, CLAHE on L,
// back to BGR, then the gamma curve as a lookup table.
func contrastGamma(input []byte, maxDimension int, p Params) ([]byte, error) {
	src, err := decodeMat(input, maxDimension)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	planes := gocv.Split(lab)
	defer closeMats(planes)
	if len(planes) != 3 {
		return nil, fmt.Errorf("%w: expected 3 channels, got %d", ErrDecode, len(planes))
	}

	clahe := gocv.NewCLAHEWithParams(p.ClipLimit, image.Pt(p.TileGridX, p.TileGridY))
	defer clahe.Close()
	l := gocv.NewMat()
	defer l.Close()
	clahe.Apply(planes[0], &l)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{l, planes[1], planes[2]}, &merged)

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(merged, &bgr, gocv.ColorLabToBGR)

	lut := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	defer lut.Close()
	for i, v := range gammaTable(p.Gamma) {
		lut.SetUCharAt(0, i, v)
	}
	out := gocv.NewMat()
	defer out.Close()
	gocv.LUT(bgr, lut, &out)

	return encodeMat(out, p.JPEGQuality)
}

func decodeMat(data []byte, maxDimension int) (gocv.Mat, error) {
	if err := checkHeader(data, maxDimension); err != nil {
		return gocv.Mat{}, err
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() || mat.Channels() != 3 {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("%w: opencv could not decode input", ErrDecode)
	}
	return mat, nil
}

func encodeMat(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty matrix", ErrEncode)
	}
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if quality > 0 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, mat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

func closeMats(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
