package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	return img
}

func TestPreprocessShapeAndRange(t *testing.T) {
	data := encodePNG(t, gradient(60, 40))

	x, err := Preprocess(data, 32)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 32, 32}, x.Shape)
	for _, v := range x.Data {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestPreprocessSolidColour(t *testing.T) {
	data := encodePNG(t, solid(16, 16, color.NRGBA{R: 255, G: 0, B: 51, A: 255}))

	x, err := Preprocess(data, 8)
	require.NoError(t, err)

	plane := 8 * 8
	for i := 0; i < plane; i++ {
		assert.InDelta(t, 1.0, x.Data[i], 1e-9)
		assert.InDelta(t, 0.0, x.Data[plane+i], 1e-9)
		assert.InDelta(t, 0.2, x.Data[2*plane+i], 1e-9)
	}
}

func TestPreprocessIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(50, 70), &jpeg.Options{Quality: 90}))
	data := buf.Bytes()

	first, err := Preprocess(data, 128)
	require.NoError(t, err)
	second, err := Preprocess(data, 128)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestPreprocessRejectsNonImages(t *testing.T) {
	_, err := Preprocess([]byte("%PDF-1.4 definitely not pixels"), 32)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.Contains(t, err.Error(), "DecodeError")
	assert.Contains(t, err.Error(), "application/pdf")

	_, err = Preprocess(nil, 32)
	assert.True(t, IsDecodeError(err))
}

func TestPreprocessRejectsBadSize(t *testing.T) {
	_, err := Preprocess(encodePNG(t, gradient(4, 4)), 0)
	require.Error(t, err)
	assert.False(t, IsDecodeError(err))
}

func TestToTensorHandlesSubImages(t *testing.T) {
	img := gradient(10, 10)
	sub := img.SubImage(image.Rect(2, 3, 6, 7)).(*image.NRGBA)

	x := ToTensor(sub)
	assert.Equal(t, []int{3, 4, 4}, x.Shape)
	assert.InDelta(t, float64(8)/255, x.Data[0], 1e-12)
	assert.InDelta(t, float64(12)/255, x.Data[16], 1e-12)
}
