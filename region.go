package eigenface

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Eye-face template: reference eyes at (59,75) and (130,75) in a 186x186 face box.
var (
	templateLeftEye  = image.Pt(59, 75)
	templateRightEye = image.Pt(130, 75)
	templateFaceSize = 186
)

// RegionSource tells how a face region was obtained
type RegionSource int

const (
	// RegionUnresolved means neither the detector nor the template produced a region
	RegionUnresolved RegionSource = iota
	// RegionDetected means the face detector found the region
	RegionDetected
	// RegionTemplate means the region was derived from the eye positions
	RegionTemplate
)

func (s RegionSource) String() string {
	switch s {
	case RegionDetected:
		return "detector"
	case RegionTemplate:
		return "template"
	default:
		return "unresolved"
	}
}

// Region is the outcome of face region selection
type Region struct {
	Source RegionSource
	Rect   image.Rectangle
}

// Resolved reports whether a usable region was found
func (r Region) Resolved() bool {
	return r.Source != RegionUnresolved && !r.Rect.Empty()
}

// SelectRegion picks the face region of a grayscale image. The first
// detector hit wins; without one the eye-face template is applied when
// eyes is valid. A nil detector skips detection.
func SelectRegion(gray gocv.Mat, eyes EyePosition, detector FaceDetector) Region {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	if bounds.Empty() {
		return Region{Source: RegionUnresolved}
	}

	if detector != nil {
		for _, face := range detector.DetectFaces(gray) {
			if r := face.Intersect(bounds); !r.Empty() {
				return Region{Source: RegionDetected, Rect: r}
			}
		}
	}

	if eyes.Valid() {
		if r, ok := EyeFaceTemplate(bounds, eyes); ok {
			return Region{Source: RegionTemplate, Rect: r}
		}
	}

	return Region{Source: RegionUnresolved}
}

// EyeFaceTemplate scales the reference face box to the given eyes and
// anchors it at the left eye. Sides that fall outside bounds are clamped
// and the opposite sides pulled in by the same amount so the result stays
// square. It returns false when no non-empty square fits.
func EyeFaceTemplate(bounds image.Rectangle, eyes EyePosition) (image.Rectangle, bool) {
	dist := eyes.Distance()
	if !eyes.Valid() || dist <= 0 {
		return image.Rectangle{}, false
	}

	rate := dist / float64(templateRightEye.X-templateLeftEye.X)
	size := int(math.Round(float64(templateFaceSize) * rate))
	if size < 1 {
		return image.Rectangle{}, false
	}

	left := int(math.Round(float64(eyes.Left.X) - float64(templateLeftEye.X)*rate))
	top := int(math.Round(float64(eyes.Left.Y) - float64(templateLeftEye.Y)*rate))
	right, bottom := left+size, top+size

	// no forehead in the image
	if top < bounds.Min.Y {
		oor := bounds.Min.Y - top
		top = bounds.Min.Y
		left += oor / 2
		right -= oor - oor/2
	}
	if bottom > bounds.Max.Y {
		oor := bottom - bounds.Max.Y
		bottom = bounds.Max.Y
		left += oor / 2
		right -= oor - oor/2
	}
	if left < bounds.Min.X {
		oor := bounds.Min.X - left
		left = bounds.Min.X
		top += oor
		right -= oor
		bottom -= oor
	}
	if right > bounds.Max.X {
		oor := right - bounds.Max.X
		right = bounds.Max.X
		left += oor
		top += oor
		bottom -= oor
	}

	if right <= left || bottom <= top {
		return image.Rectangle{}, false
	}

	r := image.Rect(left, top, right, bottom)
	if !r.In(bounds) {
		return image.Rectangle{}, false
	}
	return r, true
}
