package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// Decode attempts to decode an image from bytes, trying multiple formats.
func Decode(data []byte) (image.Image, error) {
	// Try JPEG first (camera frames and captured stills are JPEG)
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try generic image decode as fallback
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("unsupported or invalid image format")
}

// DecodeBase64 decodes a base64 image string as produced by file readers and
// canvas exports. An optional "data:<mime>;base64," prefix is stripped; when
// present, its MIME type is returned alongside the raw bytes.
func DecodeBase64(s string) ([]byte, string, error) {
	contentType := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URI: no comma separator")
		}
		header := s[len("data:"):comma]
		contentType = strings.TrimSuffix(header, ";base64")
		s = s[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	return data, contentType, nil
}
