package imaging

import "image"

// Otsu returns the global threshold that maximises between-class variance.
// Pixels strictly above the threshold belong to the bright class.
func Otsu(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		sumBg    float64
		weightBg int
		best     float64
		thresh   uint8
	)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}

		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)

		diff := meanBg - meanFg
		between := float64(weightBg) * float64(weightFg) * diff * diff
		if between > best {
			best = between
			thresh = uint8(t)
		}
	}
	return thresh
}

// Binarize maps pixels above t to 255 and the rest to 0, or the reverse
// when inverse is set.
func Binarize(img *image.Gray, t uint8, inverse bool) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	hi, lo := uint8(255), uint8(0)
	if inverse {
		hi, lo = lo, hi
	}
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if src[x] > t {
				dst[x] = hi
			} else {
				dst[x] = lo
			}
		}
	}
	return out
}

// Mean returns the average pixel value.
func Mean(img *image.Gray) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			sum += int(row[x])
		}
	}
	return float64(sum) / float64(n)
}

func invertInPlace(img *image.Gray) {
	for i, v := range img.Pix {
		img.Pix[i] = 255 - v
	}
}
