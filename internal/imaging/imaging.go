// Package imaging prepares uploaded rasters for text extraction and for the
// remote understanding backend.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the input cannot be parsed as a raster image.
var ErrDecode = errors.New("could not decode image")

// ErrTooManyPixels is returned, together with ErrDecode, for images whose
// header declares more pixels than the decode limit.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// DefaultMaxPixels is the decode limit used by Decode, about a 12MP photo.
const DefaultMaxPixels = 12_000_000

// Preset selects a preprocessing pipeline.
type Preset string

const (
	// PresetTable targets scanned documents and tables: grid lines are
	// detected and erased before extraction.
	PresetTable Preset = "table"
	// PresetChart targets digital screenshots and charts.
	PresetChart Preset = "chart"
)

// Border widths added around the transformed raster.
const (
	TableBorder = 20
	ChartBorder = 60
)

const (
	tableScale     = 3.0
	chartScale     = 2.5
	lineKernelSize = 40
	lineIterations = 2
	darkMeanCutoff = 127
)

// ParsePreset maps a query value to a Preset. Empty selects PresetTable.
func ParsePreset(s string) (Preset, error) {
	switch Preset(s) {
	case "", PresetTable:
		return PresetTable, nil
	case PresetChart:
		return PresetChart, nil
	default:
		return "", fmt.Errorf("unknown preset %q", s)
	}
}

// Decode parses PNG, JPEG, GIF, BMP, TIFF or WebP data up to
// DefaultMaxPixels.
func Decode(raw []byte) (image.Image, error) {
	return DecodeLimit(raw, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel limit, checked against the
// image header before any pixel data is allocated. maxPixels <= 0 disables
// the check.
func DecodeLimit(raw []byte, maxPixels int) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrDecode
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %w: %dx%d is over %d pixels", ErrDecode, ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Transform decodes raw and runs the preset pipeline. The result is always
// dark text on a white background with the preset's border.
func Transform(raw []byte, preset Preset) (*image.Gray, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return TransformImage(img, preset), nil
}

// TransformImage runs the preset pipeline on an already decoded image.
func TransformImage(img image.Image, preset Preset) *image.Gray {
	gray := Grayscale(img)
	if preset == PresetChart {
		return chartPipeline(gray)
	}
	return tablePipeline(gray)
}

func tablePipeline(gray *image.Gray) *image.Gray {
	scaled := Scale(gray, tableScale, draw.CatmullRom)

	// text and lines become white on black
	binary := Binarize(scaled, Otsu(scaled), true)

	horizontal := Open(binary, lineKernelSize, 1, lineIterations)
	vertical := Open(binary, 1, lineKernelSize, lineIterations)

	clean := subtractMask(binary, horizontal, vertical)
	invertInPlace(clean)

	return Pad(clean, TableBorder, 255)
}

func chartPipeline(gray *image.Gray) *image.Gray {
	scaled := Scale(gray, chartScale, Lanczos3)
	binary := Binarize(scaled, Otsu(scaled), false)

	if Mean(binary) < darkMeanCutoff {
		invertInPlace(binary)
	}

	return Pad(binary, ChartBorder, 255)
}

// Grayscale converts any image to 8-bit luminance with bounds at the origin.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Pad returns a copy of img with px pixels of value on every side.
func Pad(img *image.Gray, px int, value uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()+2*px, b.Dy()+2*px))
	for i := range out.Pix {
		out.Pix[i] = value
	}
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		src := img.Pix[off : off+b.Dx()]
		dst := out.Pix[(y+px)*out.Stride+px:]
		copy(dst[:b.Dx()], src)
	}
	return out
}
