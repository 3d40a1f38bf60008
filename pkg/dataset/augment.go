package dataset

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"Myagara/pkg/vision"

	"github.com/disintegration/imaging"
)

// Augmentation perturbs training images only. Rotation and Zoom are fractions:
// a rotation of 0.2 turns by up to ±0.2 of a full circle and a zoom of 0.2
// scales by up to ±20%.
type Augmentation struct {
	Flip     bool
	Rotation float64
	Zoom     float64
}

func DefaultAugmentation() Augmentation {
	return Augmentation{Flip: true, Rotation: 0.2, Zoom: 0.2}
}

func (a Augmentation) Enabled() bool {
	return a.Flip || a.Rotation > 0 || a.Zoom > 0
}

// Apply returns a new image of the same size. The input is never modified.
func (a Augmentation) Apply(img *image.NRGBA, rng *rand.Rand) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.Clone(img)

	if a.Flip {
		if rng.Intn(2) == 1 {
			out = imaging.FlipH(out)
		}
		if rng.Intn(2) == 1 {
			out = imaging.FlipV(out)
		}
	}

	if a.Rotation > 0 {
		angle := (rng.Float64()*2 - 1) * a.Rotation * 360
		if angle != 0 {
			// Rotate grows the canvas; cropping the centre keeps the size and
			// the corners it exposes stay black, like a constant fill.
			out = imaging.CropCenter(imaging.Rotate(out, angle, color.Black), w, h)
		}
	}

	if a.Zoom > 0 {
		factor := 1 + (rng.Float64()*2-1)*a.Zoom
		out = zoom(out, factor)
	}
	return out
}

// zoom scales the image content by factor around its centre. factor > 1 zooms
// in, factor < 1 shrinks the content onto a black canvas.
func zoom(img *image.NRGBA, factor float64) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if factor == 1 {
		return img
	}
	if factor > 1 {
		cw := int(math.Round(float64(w) / factor))
		ch := int(math.Round(float64(h) / factor))
		if cw < 1 || ch < 1 {
			return img
		}
		return imaging.Resize(imaging.CropCenter(img, cw, ch), w, h, vision.ResizeFilter)
	}

	sw := int(math.Round(float64(w) * factor))
	sh := int(math.Round(float64(h) * factor))
	if sw < 1 || sh < 1 {
		return img
	}
	small := imaging.Resize(img, sw, sh, vision.ResizeFilter)
	canvas := imaging.New(w, h, color.Black)
	return imaging.PasteCenter(canvas, small)
}
