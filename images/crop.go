package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Card geometry. A CNIC measures 85.60mm x 53.98mm; the guide overlay uses the
// physical width/height ratio and the output surface is a 10x rendition of the
// physical dimensions.
const (
	CardAspectRatio    = 1.586
	GuideWidthFraction = 0.8

	CardOutputWidth  = 856
	CardOutputHeight = 540

	cardJPEGQuality = 90
)

// GuideRect is the on-screen guide rectangle in display coordinates.
type GuideRect struct {
	X, Y, W, H float64
}

// ComputeGuideRect places the guide overlay for a video displayed at
// displayW x displayH: centered, GuideWidthFraction of the displayed width,
// height derived from the card aspect ratio.
func ComputeGuideRect(displayW, displayH float64) (GuideRect, error) {
	if displayW <= 0 || displayH <= 0 {
		return GuideRect{}, fmt.Errorf("invalid display dimensions %vx%v", displayW, displayH)
	}
	w := displayW * GuideWidthFraction
	h := w / CardAspectRatio
	return GuideRect{
		X: (displayW - w) / 2,
		Y: (displayH - h) / 2,
		W: w,
		H: h,
	}, nil
}

// MapToNative projects the guide rectangle from display coordinates into the
// frame's native pixel space. Width and height are scaled independently so
// letterboxed or non-uniformly scaled video maps correctly. The result is
// clamped to the frame bounds.
func MapToNative(guide GuideRect, displayW, displayH float64, nativeW, nativeH int) (image.Rectangle, error) {
	if displayW <= 0 || displayH <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid display dimensions %vx%v", displayW, displayH)
	}
	if nativeW <= 0 || nativeH <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid native frame dimensions %dx%d", nativeW, nativeH)
	}

	scaleX := float64(nativeW) / displayW
	scaleY := float64(nativeH) / displayH

	x0 := int(math.Round(guide.X * scaleX))
	y0 := int(math.Round(guide.Y * scaleY))
	x1 := int(math.Round((guide.X + guide.W) * scaleX))
	y1 := int(math.Round((guide.Y + guide.H) * scaleY))

	rect := image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, nativeW, nativeH))
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("guide region falls outside the native frame")
	}
	return rect, nil
}

// CropCard extracts the guide region from a full camera frame and resamples it
// onto the fixed CardOutputWidth x CardOutputHeight surface. The rest of the
// frame is discarded. Output size is constant regardless of frame dimensions.
func CropCard(frame image.Image, displayW, displayH float64) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("no frame provided")
	}
	bounds := frame.Bounds()
	nativeW, nativeH := bounds.Dx(), bounds.Dy()
	if nativeW <= 0 || nativeH <= 0 {
		return nil, fmt.Errorf("invalid native frame dimensions %dx%d", nativeW, nativeH)
	}

	guide, err := ComputeGuideRect(displayW, displayH)
	if err != nil {
		return nil, err
	}
	region, err := MapToNative(guide, displayW, displayH, nativeW, nativeH)
	if err != nil {
		return nil, err
	}

	// Source rect is relative to the frame's own coordinate space.
	src := region.Add(bounds.Min)

	dst := image.NewRGBA(image.Rect(0, 0, CardOutputWidth, CardOutputHeight))
	// CatmullRom = high quality, good for document text legibility.
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), frame, src, xdraw.Over, nil)
	return dst, nil
}

// EncodeCardJPEG encodes a cropped card still at the fixed capture quality.
func EncodeCardJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cardJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode card still: %w", err)
	}
	return buf.Bytes(), nil
}
