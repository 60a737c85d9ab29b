package imaging

import "image"

// Open performs a morphological opening of a binary (0/255) image with a
// kw×kh rectangular structuring element: iterations erosions followed by
// iterations dilations. The anchor is the kernel centre.
func Open(bin *image.Gray, kw, kh, iterations int) *image.Gray {
	out := clone(bin)
	for i := 0; i < iterations; i++ {
		out = morph(out, kw, kh, true)
	}
	for i := 0; i < iterations; i++ {
		out = morph(out, kw, kh, false)
	}
	return out
}

// morph applies a rectangular erosion (erode=true) or dilation. Rectangles
// are separable, so it runs a horizontal pass then a vertical pass.
func morph(img *image.Gray, kw, kh int, erode bool) *image.Gray {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := img
	if kw > 1 {
		out = pass(out, w, h, kw, erode, true)
	}
	if kh > 1 {
		out = pass(out, w, h, kh, erode, false)
	}
	if out == img {
		out = clone(img)
	}
	return out
}

// pass runs a 1-D min (erode) or max (dilate) filter over rows or columns
// using a sliding count of set pixels. Pixels outside the image never
// restrict an erosion and never feed a dilation.
func pass(img *image.Gray, w, h, k int, erode, horizontal bool) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	anchor := k / 2

	lines, length := h, w
	if !horizontal {
		lines, length = w, h
	}

	at := func(line, i int) int {
		if horizontal {
			return line*img.Stride + i
		}
		return i*img.Stride + line
	}

	prefix := make([]int, length+1)
	for line := 0; line < lines; line++ {
		for i := 0; i < length; i++ {
			set := 0
			if img.Pix[at(line, i)] != 0 {
				set = 1
			}
			prefix[i+1] = prefix[i] + set
		}

		for i := 0; i < length; i++ {
			lo := max(i-anchor, 0)
			hi := min(i-anchor+k, length)
			count := prefix[hi] - prefix[lo]

			var on bool
			if erode {
				on = count == hi-lo
			} else {
				on = count > 0
			}
			if on {
				out.Pix[at(line, i)] = 255
			}
		}
	}
	return out
}

// subtractMask clears every pixel of bin that is set in any mask.
func subtractMask(bin *image.Gray, masks ...*image.Gray) *image.Gray {
	out := clone(bin)
	for i := range out.Pix {
		for _, m := range masks {
			if m.Pix[i] != 0 {
				out.Pix[i] = 0
				break
			}
		}
	}
	return out
}

func clone(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], img.Pix[off:off+b.Dx()])
	}
	return out
}
