package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Lanczos3 is a windowed-sinc resampling kernel with three lobes.
var Lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	},
}

// DownscaleQuality is the JPEG quality used when re-encoding.
const DownscaleQuality = 85

// Scale resizes a grayscale image by factor using the given interpolator.
func Scale(img *image.Gray, factor float64, scaler draw.Scaler) *image.Gray {
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	h := max(int(math.Round(float64(b.Dy())*factor)), 1)

	out := image.NewGray(image.Rect(0, 0, w, h))
	scaler.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}

// Downscale shrinks raw so neither side exceeds maxDim, keeping the aspect
// ratio, and re-encodes it as JPEG. It never fails: when the input is
// already small enough or anything goes wrong, raw is returned unchanged and
// resized is false.
func Downscale(raw []byte, maxDim int) (out []byte, resized bool) {
	if maxDim <= 0 {
		return raw, false
	}

	img, err := Decode(raw)
	if err != nil {
		return raw, false
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return raw, false
	}

	ratio := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := max(int(math.Round(float64(w)*ratio)), 1)
	nh := max(int(math.Round(float64(h)*ratio)), 1)

	// JPEG has no alpha, so flatten onto white first
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	Lanczos3.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: DownscaleQuality}); err != nil {
		return raw, false
	}
	return buf.Bytes(), true
}
