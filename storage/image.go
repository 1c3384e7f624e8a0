package storage

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/finch-technologies/storage-manager/storage/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a downloaded and decoded image.
type Image struct {
	image.Image
	// Format is the decoder name, e.g. "png" or "jpeg".
	Format string
	// Size is the encoded size in bytes.
	Size int
}

func decodeImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, types.NewError(types.CodeDecode, "no image data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, types.Wrap(types.CodeDecode, err)
	}

	return Image{Image: img, Format: format, Size: len(data)}, nil
}
