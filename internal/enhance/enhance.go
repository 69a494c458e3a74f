// Package enhance implements the deterministic photo enhancement applied to
// every uploaded image: decode, one of two tone adjustments, JPEG re-encode.
//
// Decoding, encoding and ContrastGamma go through OpenCV (gocv) in cgo builds.
// With CGO_ENABLED=0 a pure Go codec and CLAHE are used instead. ToneMapDrago
// is computed in Go on float32 planes in both builds.
package enhance

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm selects the enhancement variant.
type Algorithm string

const (
	// ContrastGamma equalizes local contrast on the luminance channel (CLAHE)
	// and then applies a power-law gamma to every channel.
	ContrastGamma Algorithm = "contrast_gamma"
	// ToneMapDrago applies the Drago logarithmic tone-mapping operator.
	ToneMapDrago Algorithm = "tonemap_drago"
)

var (
	// ErrDecode is returned when the input cannot be parsed as a supported image.
	ErrDecode = errors.New("enhance: decode failed")
	// ErrEncode is returned when the processed pixels cannot be serialized.
	ErrEncode = errors.New("enhance: encode failed")
	// ErrUnsupportedAlgorithm is returned for an unknown algorithm selector.
	ErrUnsupportedAlgorithm = errors.New("enhance: unsupported algorithm")
	// ErrImageTooLarge is returned when the image header declares dimensions
	// above the configured maximum.
	ErrImageTooLarge = errors.New("enhance: image too large")
)

// ParseAlgorithm resolves a configuration value to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case ContrastGamma:
		return ContrastGamma, nil
	case ToneMapDrago:
		return ToneMapDrago, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// Params holds the fixed numeric constants of both algorithms.
type Params struct {
	// CLAHE
	TileGridX int
	TileGridY int
	ClipLimit float64
	// Gamma is the exponent applied after CLAHE.
	Gamma float64
	// JPEGQuality is used for ContrastGamma output. ToneMapDrago output uses
	// the encoder default.
	JPEGQuality int

	// Drago
	DragoBias       float32
	DragoGamma      float32
	DragoSaturation float32
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		TileGridX:       8,
		TileGridY:       8,
		ClipLimit:       2.0,
		Gamma:           0.8,
		JPEGQuality:     95,
		DragoBias:       0.7,
		DragoGamma:      1.0,
		DragoSaturation: 0.7,
	}
}

// DefaultMaxDimension bounds the width and height accepted before decoding.
const DefaultMaxDimension = 8192

// Config is passed to New.
type Config struct {
	Algorithm    Algorithm
	MaxDimension int
	Params       Params
}

// DefaultConfig returns a ContrastGamma configuration with default parameters.
func DefaultConfig() Config {
	return Config{
		Algorithm:    ContrastGamma,
		MaxDimension: DefaultMaxDimension,
		Params:       DefaultParams(),
	}
}

// Enhancer applies the configured algorithm. It holds no mutable state and is
// safe for concurrent use.
type Enhancer struct {
	algorithm    Algorithm
	maxDimension int
	params       Params
}

// New validates cfg and returns an Enhancer.
func New(cfg Config) (*Enhancer, error) {
	alg, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	maxDim := cfg.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	params := cfg.Params
	if params == (Params{}) {
		params = DefaultParams()
	}
	if params.TileGridX <= 0 || params.TileGridY <= 0 {
		return nil, errors.New("enhance: tile grid must be positive")
	}
	if params.Gamma <= 0 || params.DragoGamma <= 0 {
		return nil, errors.New("enhance: gamma must be positive")
	}
	if params.DragoBias <= 0 || params.DragoBias >= 1 {
		return nil, errors.New("enhance: drago bias must be in (0,1)")
	}
	return &Enhancer{algorithm: alg, maxDimension: maxDim, params: params}, nil
}

// Algorithm reports the configured algorithm.
func (e *Enhancer) Algorithm() Algorithm {
	return e.algorithm
}

// Enhance runs the configured algorithm over input and returns JPEG bytes.
func (e *Enhancer) Enhance(input []byte) ([]byte, error) {
	return e.EnhanceWith(input, e.algorithm)
}

// EnhanceWith runs alg over input. On error no output is returned.
func (e *Enhancer) EnhanceWith(input []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case ContrastGamma:
		return contrastGamma(input, e.maxDimension, e.params)
	case ToneMapDrago:
		m, err := Decode(input, e.maxDimension)
		if err != nil {
			return nil, err
		}
		applyDrago(m, e.params)
		return Encode(m, 0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}
