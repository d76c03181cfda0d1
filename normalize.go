package eigenface

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// ErrNoFaceRegion is returned when neither the detector nor the eye-face
// template yields a face region
var ErrNoFaceRegion = errors.New("no face region found")

// Normalizer turns raw samples into equally sized, equalized face crops
type Normalizer struct {
	detector FaceDetector
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer. A nil detector means template only.
func NewNormalizer(detector FaceDetector, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{detector: detector, logger: logger}
}

// Crop extracts the face region of s and remaps its eyes into the crop.
// The returned sample owns a new image.
func (n *Normalizer) Crop(s Sample) (Sample, Region, error) {
	gray, err := ToGray(s.Image)
	if err != nil {
		return Sample{}, Region{}, fmt.Errorf("%s: %w", s.Label, err)
	}
	defer gray.Close()

	region := SelectRegion(gray, s.Eyes, n.detector)
	if !region.Resolved() {
		return Sample{}, region, fmt.Errorf("%s: %w", s.Label, ErrNoFaceRegion)
	}
	if region.Source == RegionTemplate && n.detector != nil {
		n.logger.Info("0 face detected, using eye-face template", "sample", s.Label)
	}

	roi := gray.Region(region.Rect)
	face := roi.Clone()
	roi.Close()

	return Sample{
		Image: face,
		Eyes:  s.Eyes.Offset(region.Rect.Min),
		Label: s.Label,
	}, region, nil
}

// Normalize crops s, resizes the crop to size and equalizes its histogram
func (n *Normalizer) Normalize(s Sample, size image.Point) (Sample, error) {
	face, _, err := n.Crop(s)
	if err != nil {
		return Sample{}, err
	}
	defer face.Close()

	return fit(face, size)
}

// NormalizeBatch normalizes a training batch. Every crop is resized to the
// average crop size of the batch, which is returned alongside the samples.
// Samples without a face region are logged and left out.
func (n *Normalizer) NormalizeBatch(samples []Sample) ([]Sample, image.Point) {
	faces := make([]Sample, 0, len(samples))
	defer func() {
		for i := range faces {
			faces[i].Close()
		}
	}()

	var sumW, sumH int
	for _, s := range samples {
		face, region, err := n.Crop(s)
		if err != nil {
			n.logger.Warn("excluding sample", "sample", s.Label, "error", err)
			continue
		}
		n.logger.Debug("face region selected", "sample", s.Label, "source", region.Source, "rect", region.Rect)

		sumW += face.Image.Cols()
		sumH += face.Image.Rows()
		faces = append(faces, face)
	}

	if len(faces) == 0 {
		return nil, image.Point{}
	}

	size := image.Pt(sumW/len(faces), sumH/len(faces))

	out := make([]Sample, 0, len(faces))
	for _, face := range faces {
		normalized, err := fit(face, size)
		if err != nil {
			n.logger.Warn("excluding sample", "sample", face.Label, "error", err)
			continue
		}
		out = append(out, normalized)
	}

	return out, size
}

// fit resizes a face crop to size and equalizes it
func fit(face Sample, size image.Point) (Sample, error) {
	if size.X <= 0 || size.Y <= 0 {
		return Sample{}, fmt.Errorf("%s: invalid canonical size %v", face.Label, size)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(face.Image, &resized, size, 0, 0, gocv.InterpolationLinear)

	// make the pixel value distribution more normal
	equalized := gocv.NewMat()
	gocv.EqualizeHist(resized, &equalized)

	rate := float64(size.Y) / float64(face.Image.Rows())
	return Sample{
		Image: equalized,
		Eyes:  face.Eyes.Scale(rate),
		Label: face.Label,
	}, nil
}
