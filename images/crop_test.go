package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func TestComputeGuideRect(t *testing.T) {
	guide, err := ComputeGuideRect(1000, 600)
	require.NoError(t, err)

	require.InDelta(t, 800.0, guide.W, 1e-9)
	require.InDelta(t, 800.0/CardAspectRatio, guide.H, 1e-9)
	// Centered on both axes.
	require.InDelta(t, 100.0, guide.X, 1e-9)
	require.InDelta(t, (600.0-guide.H)/2, guide.Y, 1e-9)
}

func TestComputeGuideRectInvalidDimensions(t *testing.T) {
	_, err := ComputeGuideRect(0, 600)
	require.Error(t, err)
	_, err = ComputeGuideRect(1000, 0)
	require.Error(t, err)
	_, err = ComputeGuideRect(-1, -1)
	require.Error(t, err)
}

func TestMapToNativeScalesAxesIndependently(t *testing.T) {
	// Video displayed at 400x300 while the camera delivers 1920x1080:
	// the axes scale by 4.8 and 3.6 respectively.
	guide, err := ComputeGuideRect(400, 300)
	require.NoError(t, err)

	rect, err := MapToNative(guide, 400, 300, 1920, 1080)
	require.NoError(t, err)

	require.Equal(t, image.Rect(192, 177, 1728, 903), rect)
	// The projected width stays the guide fraction of the native width.
	require.Equal(t, 1536, rect.Dx())
}

func TestMapToNativeRejectsRegionOutsideFrame(t *testing.T) {
	guide := GuideRect{X: 500, Y: 500, W: 10, H: 10}
	_, err := MapToNative(guide, 400, 300, 100, 75)
	require.Error(t, err)
}

func TestMapToNativeInvalidDimensions(t *testing.T) {
	guide, err := ComputeGuideRect(400, 300)
	require.NoError(t, err)

	_, err = MapToNative(guide, 0, 300, 1920, 1080)
	require.Error(t, err)
	_, err = MapToNative(guide, 400, 300, 0, 1080)
	require.Error(t, err)
	_, err = MapToNative(guide, 400, 300, 1920, -5)
	require.Error(t, err)
}

func TestCropCardOutputSizeIsConstant(t *testing.T) {
	cases := []struct {
		name             string
		nativeW, nativeH int
		displayW         float64
		displayH         float64
	}{
		{"vga frame", 640, 480, 640, 480},
		{"hd frame scaled down display", 1920, 1080, 400, 300},
		{"hd frame same display", 1280, 720, 1280, 720},
		{"odd dimensions", 333, 777, 250, 500},
		{"tiny frame", 64, 48, 320, 240},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card, err := CropCard(testFrame(tc.nativeW, tc.nativeH), tc.displayW, tc.displayH)
			require.NoError(t, err)
			require.Equal(t, CardOutputWidth, card.Bounds().Dx())
			require.Equal(t, CardOutputHeight, card.Bounds().Dy())
		})
	}
}

func TestCropCardInvalidInput(t *testing.T) {
	_, err := CropCard(nil, 400, 300)
	require.Error(t, err)

	_, err = CropCard(testFrame(640, 480), 0, 0)
	require.Error(t, err)
}

func TestEncodeCardJPEG(t *testing.T) {
	card, err := CropCard(testFrame(1280, 720), 640, 360)
	require.NoError(t, err)

	encoded, err := EncodeCardJPEG(card)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := jpeg.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, CardOutputWidth, decoded.Bounds().Dx())
	require.Equal(t, CardOutputHeight, decoded.Bounds().Dy())
}
