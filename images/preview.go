package images

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
)

// previewMaxDim bounds the thumbnail previews rendered next to upload slots.
const previewMaxDim = 400

// PreviewBase64 derives a renderable preview from a staged image payload:
// a thumbnail fitted within previewMaxDim on both axes, returned as a JPEG
// data URI for direct use in an img element.
func PreviewBase64(data []byte) (string, error) {
	img, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode staged image: %w", err)
	}

	thumb := imaging.Fit(img, previewMaxDim, previewMaxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
