package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// Preprocess prepares a page raster for OCR: grayscale, sharpen, then stretch
// contrast by factor around the mean luminance.
func Preprocess(img image.Image, factor float64) *image.NRGBA {
	gray := imaging.Grayscale(img)
	sharp := imaging.Convolve3x3(gray, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
	if factor <= 0 || factor == 1 {
		return sharp
	}
	mean := meanLuminance(sharp)
	return imaging.AdjustFunc(sharp, func(c color.NRGBA) color.NRGBA {
		v := clamp(mean + (float64(c.R)-mean)*factor)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// meanLuminance assumes a grayscale image, so the red channel is the luminance.
func meanLuminance(img *image.NRGBA) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			sum += float64(row[x])
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
