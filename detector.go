package eigenface

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// FaceDetector finds candidate face regions in a grayscale image
type FaceDetector interface {
	DetectFaces(gray gocv.Mat) []image.Rectangle
	Close() error
}

// DetectorKind selects the face detector implementation
type DetectorKind string

const (
	// DetectorHaar is the OpenCV Haar cascade (haarcascade_frontalface_default.xml)
	DetectorHaar DetectorKind = "haar"
	// DetectorPigo is the pigo pixel intensity comparison cascade
	DetectorPigo DetectorKind = "pigo"
	// DetectorNone disables detection, regions come from the eye-face template
	DetectorNone DetectorKind = "none"
)

// CascadeDetector wraps an OpenCV cascade classifier
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads an OpenCV cascade XML file
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade file: %s", path)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// DetectFaces runs multi-scale detection with the default parameters
func (d *CascadeDetector) DetectFaces(gray gocv.Mat) []image.Rectangle {
	return d.classifier.DetectMultiScale(gray)
}

// Close releases the classifier
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

// PigoParams holds Pigo face detector parameters
type PigoParams struct {
	MinSize          int     // Minimum face size
	MaxSize          int     // Maximum face size
	ShiftFactor      float64 // Shift factor
	ScaleFactor      float64 // Scale factor
	IoUThreshold     float64 // Cluster overlap threshold
	QualityThreshold float32 // Detection quality threshold
}

// DefaultPigoParams returns the parameters used when none are given
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:          100,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5.0,
	}
}

// PigoDetector detects faces with a pigo cascade
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// NewPigoDetector unpacks a pigo cascade file (e.g. "facefinder")
func NewPigoDetector(path string, params PigoParams) (*PigoDetector, error) {
	cascadeFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Pigo cascade file: %w", err)
	}

	p := pigo.NewPigo()
	classifier, err := p.Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack Pigo cascade: %w", err)
	}

	return &PigoDetector{classifier: classifier, params: params}, nil
}

// DetectFaces runs the cascade on an 8-bit single channel image
func (d *PigoDetector) DetectFaces(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() || gray.Type() != gocv.MatTypeCV8UC1 {
		return nil
	}

	c := gray.Clone()
	defer c.Close()

	width, height := c.Cols(), c.Rows()
	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: c.ToBytes(),
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q > d.params.QualityThreshold {
			x := det.Col - det.Scale/2
			y := det.Row - det.Scale/2
			faces = append(faces, image.Rect(x, y, x+det.Scale, y+det.Scale))
		}
	}

	return faces
}

// Close is a no-op, pigo holds no native resources
func (d *PigoDetector) Close() error {
	return nil
}
