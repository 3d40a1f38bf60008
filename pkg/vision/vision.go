package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"Myagara/pkg/nn"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the number of colour channels fed to the network. Alpha is
// dropped.
const Channels = 3

// ResizeFilter is shared by training and serving so both see the same pixels.
var ResizeFilter = imaging.Linear

// DecodeError reports bytes that are not a readable image.
type DecodeError struct {
	MIME string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("DecodeError: cannot decode %s as an image: %v", e.MIME, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{MIME: "empty input", Err: errors.New("no bytes")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{MIME: mimetype.Detect(data).String(), Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{MIME: mimetype.Detect(data).String(), Err: errors.New("image has no pixels")}
	}
	return img, nil
}

// Resize scales img to size x size, ignoring aspect ratio.
func Resize(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, ResizeFilter)
}

// ToTensor converts an image to a (3, H, W) tensor with values in [0, 1].
func ToTensor(img *image.NRGBA) *nn.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := nn.NewTensor(Channels, h, w)
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			t.Data[i] = float64(row[x*4]) / 255
			t.Data[plane+i] = float64(row[x*4+1]) / 255
			t.Data[2*plane+i] = float64(row[x*4+2]) / 255
		}
	}
	return t
}

// Preprocess decodes image bytes into a (1, 3, size, size) batch tensor.
func Preprocess(data []byte, size int) (*nn.Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sample := ToTensor(Resize(img, size))
	return sample.Reshape(1, Channels, size, size), nil
}
