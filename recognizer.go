package eigenface

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"gocv.io/x/gocv"
)

// Match is the training sample closest to a query
type Match struct {
	Index     int         `json:"index"`
	Label     string      `json:"label"`
	Distance  float32     `json:"distance"`
	Accepted  bool        `json:"accepted"`
	Region    Region      `json:"-"`
	Reference *image.Gray `json:"-"`
}

// Recognizer matches query faces against a trained model.
// It is safe for concurrent use.
type Recognizer struct {
	model       *TrainedModel
	normalizer  *Normalizer
	projection  gocv.Mat
	mean        []float32
	maxDistance float32
}

// RecognizerOption configures a Recognizer
type RecognizerOption func(*Recognizer)

// WithMaxDistance marks matches farther than d as not accepted.
// Without it every match is accepted.
func WithMaxDistance(d float32) RecognizerOption {
	return func(r *Recognizer) {
		r.maxDistance = d
	}
}

// WithRecognizerLogger sets the logger of the query normalizer
func WithRecognizerLogger(logger *slog.Logger) RecognizerOption {
	return func(r *Recognizer) {
		r.normalizer.logger = logger
	}
}

// NewRecognizer prepares model for recognition. A nil detector means the
// face region always comes from the eye-face template.
func NewRecognizer(model *TrainedModel, detector FaceDetector, opts ...RecognizerOption) (*Recognizer, error) {
	if model == nil || model.Len() == 0 || model.Mean == nil {
		return nil, ErrEmptyDataset
	}

	size := model.Size()
	pixels := size.X * size.Y
	if model.Projection.Rows != model.Len() || model.Projection.Cols != pixels {
		return nil, fmt.Errorf("%w: projection is %dx%d, expected %dx%d",
			ErrSizeMismatch, model.Projection.Rows, model.Projection.Cols, model.Len(), pixels)
	}
	if len(model.References) != model.Len() {
		return nil, fmt.Errorf("model has %d references for %d samples", len(model.References), model.Len())
	}
	for i, w := range model.Weights {
		if len(w) != model.Len() {
			return nil, fmt.Errorf("%w: weight %d has %d values, expected %d", ErrSizeMismatch, i, len(w), model.Len())
		}
	}

	mean := make([]float32, pixels)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			mean[y*size.X+x] = float32(model.Mean.GrayAt(x, y).Y)
		}
	}

	r := &Recognizer{
		model:       model,
		normalizer:  NewNormalizer(detector, nil),
		projection:  model.Projection.toMat(),
		mean:        mean,
		maxDistance: float32(math.Inf(1)),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Close releases the native projection matrix
func (r *Recognizer) Close() error {
	return r.projection.Close()
}

// Model returns the model the recognizer matches against
func (r *Recognizer) Model() *TrainedModel {
	return r.model
}

// Project maps a normalized face of the model size into eigenspace
func (r *Recognizer) Project(face gocv.Mat) ([]float32, error) {
	size := r.model.Size()
	if face.Cols() != size.X || face.Rows() != size.Y || face.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("%w: face is %dx%d, expected %dx%d",
			ErrSizeMismatch, face.Cols(), face.Rows(), size.X, size.Y)
	}

	px := matBytes(face)
	diff := gocv.NewMatWithSize(len(px), 1, gocv.MatTypeCV32FC1)
	defer diff.Close()
	for k, v := range px {
		diff.SetFloatAt(k, 0, float32(v)-r.mean[k])
	}

	weight := r.projection.MultiplyMatrix(diff)
	defer weight.Close()

	out := make([]float32, weight.Rows())
	for i := range out {
		out[i] = weight.GetFloatAt(i, 0)
	}
	return out, nil
}

// Recognize finds the training sample closest to the face in img.
// eyes may be InvalidEyePosition when the detector is expected to find
// the face.
func (r *Recognizer) Recognize(img gocv.Mat, eyes EyePosition) (Match, error) {
	gray, err := ToGray(img)
	if err != nil {
		return Match{}, err
	}
	defer gray.Close()

	face, region, err := r.normalizer.Crop(Sample{Image: gray, Eyes: eyes, Label: "query"})
	if err != nil {
		if errors.Is(err, ErrNoFaceRegion) {
			return Match{Region: region}, ErrNoFaceRegion
		}
		return Match{}, err
	}
	defer face.Close()

	normalized, err := fit(face, r.model.Size())
	if err != nil {
		return Match{}, err
	}
	defer normalized.Close()

	weight, err := r.Project(normalized.Image)
	if err != nil {
		return Match{}, err
	}

	match := r.nearest(weight)
	match.Region = region
	return match, nil
}

// nearest returns the stored weight closest to weight. Ties keep the
// lowest index.
func (r *Recognizer) nearest(weight []float32) Match {
	best := 0
	bestDist := euclideanDistance(weight, r.model.Weights[0])
	for i := 1; i < len(r.model.Weights); i++ {
		if d := euclideanDistance(weight, r.model.Weights[i]); d < bestDist {
			best, bestDist = i, d
		}
	}

	ref := r.model.References[best]
	return Match{
		Index:     best,
		Label:     ref.Label,
		Distance:  bestDist,
		Accepted:  bestDist <= r.maxDistance,
		Reference: ref.Thumbnail,
	}
}

// euclideanDistance calculates the Euclidean distance between two vectors
func euclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return float32(math.MaxFloat32)
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		diff := float64(a[i] - b[i])
		sum += diff * diff
	}
	return float32(math.Sqrt(sum))
}
