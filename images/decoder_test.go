package images

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testFrame(20, 10)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testFrame(20, 10), nil))
	return buf.Bytes()
}

func TestDecodeSupportedFormats(t *testing.T) {
	img, err := Decode(encodePNG(t))
	require.NoError(t, err)
	require.Equal(t, 20, img.Bounds().Dx())

	img, err = Decode(encodeJPEG(t))
	require.NoError(t, err)
	require.Equal(t, 10, img.Bounds().Dy())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestDecodeBase64Plain(t *testing.T) {
	raw := encodePNG(t)
	data, contentType, err := DecodeBase64(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, data)
	require.Empty(t, contentType)
}

func TestDecodeBase64DataURI(t *testing.T) {
	raw := encodePNG(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	data, contentType, err := DecodeBase64(uri)
	require.NoError(t, err)
	require.Equal(t, raw, data)
	require.Equal(t, "image/png", contentType)
}

func TestDecodeBase64Malformed(t *testing.T) {
	_, _, err := DecodeBase64("data:image/png;base64")
	require.Error(t, err, "data URI without comma")

	_, _, err = DecodeBase64("not!!valid@@base64")
	require.Error(t, err)

	_, _, err = DecodeBase64("")
	require.Error(t, err, "empty payload")
}
