package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/okian/facepace/internal/domain/model"
)

// ContentTypeJPEG is the content type of encoded photos.
const ContentTypeJPEG = "image/jpeg"

// EncodeJPEG encodes frame as JPEG, flipping it horizontally when mirror is set.
func EncodeJPEG(frame image.Image, mirror bool, quality int) (model.Blob, error) {
	if frame == nil || frame.Bounds().Empty() {
		return model.Blob{}, fmt.Errorf("%w: empty frame", model.ErrMediaAccess)
	}
	img := frame
	if mirror {
		img = Mirror(frame)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return model.Blob{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return model.Blob{Data: buf.Bytes(), ContentType: ContentTypeJPEG}, nil
}

// Mirror returns a horizontally flipped copy of src.
func Mirror(src image.Image) *image.RGBA {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			for k := 0; k < 4; k++ {
				row[li+k], row[ri+k] = row[ri+k], row[li+k]
			}
		}
	}
	return rgba
}
