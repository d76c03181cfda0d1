package eigenface

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ErrEigenFaceCount is returned when more eigenfaces are requested than the model holds
var ErrEigenFaceCount = errors.New("invalid eigenface count")

// Reference identifies a training sample in recognition results
type Reference struct {
	Label     string
	Thumbnail *image.Gray
}

// TrainedModel is the outcome of Train. It is never modified after
// training, so it can be shared by concurrent recognizers.
type TrainedModel struct {
	// Mean is the average face, every training image has its size
	Mean *image.Gray

	// Difference is the (H*W) x N matrix of mean centered samples
	Difference Matrix
	// Covariance is the reduced N x N covariance (Dt*D)/N
	Covariance Matrix
	// Eigenvalues of Covariance, in solver order
	Eigenvalues []float32
	// Eigenbasis holds one eigenface per column, (H*W) x N
	Eigenbasis Matrix

	// Projection is the transposed eigenbasis with unit rows, N x (H*W)
	Projection Matrix
	// Weights holds the projection of every training sample
	Weights    [][]float32
	References []Reference
}

// Len returns the number of training samples
func (m *TrainedModel) Len() int {
	return len(m.Weights)
}

// Size returns the canonical face size as (width, height)
func (m *TrainedModel) Size() image.Point {
	if m.Mean == nil {
		return image.Point{}
	}
	return m.Mean.Bounds().Size()
}

// EigenFaces renders the first num eigenfaces as images. Each one is
// min-max normalized to [0,255] on its own.
func (m *TrainedModel) EigenFaces(num int) ([]*image.Gray, error) {
	if num < 1 || num > m.Len() {
		return nil, fmt.Errorf("%w: %d requested, model has %d", ErrEigenFaceCount, num, m.Len())
	}

	size := m.Size()
	faces := make([]*image.Gray, num)
	for i := 0; i < num; i++ {
		var vec []float32
		if !m.Eigenbasis.Empty() {
			vec = m.Eigenbasis.Col(i)
		} else {
			// unit rows only differ by a positive scale, min-max hides it
			vec = m.Projection.Row(i)
		}

		face, err := renderEigenFace(vec, size)
		if err != nil {
			return nil, err
		}
		faces[i] = face
	}

	return faces, nil
}

func renderEigenFace(vec []float32, size image.Point) (*image.Gray, error) {
	if len(vec) != size.X*size.Y {
		return nil, fmt.Errorf("eigenface has %d values, expected %d", len(vec), size.X*size.Y)
	}

	src := Matrix{Rows: 1, Cols: len(vec), Data: vec}.toMat()
	defer src.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Normalize(src, &scaled, 0, 255, gocv.NormMinMax)

	pixels := gocv.NewMat()
	defer pixels.Close()
	scaled.ConvertTo(&pixels, gocv.MatTypeCV8UC1)

	shaped := pixels.Reshape(1, size.Y)
	defer shaped.Close()

	return MatToGray(shaped)
}

// EigenFaceMontage tiles faces perRow per row, padding the last row with black
func EigenFaceMontage(faces []*image.Gray, perRow int) (*image.NRGBA, error) {
	if len(faces) == 0 {
		return nil, errors.New("no eigenfaces to tile")
	}
	if perRow < 1 {
		perRow = len(faces)
	}

	size := faces[0].Bounds().Size()
	cols := perRow
	if len(faces) < perRow {
		cols = len(faces)
	}
	rows := (len(faces) + perRow - 1) / perRow

	montage := imaging.New(cols*size.X, rows*size.Y, color.Black)
	for i, face := range faces {
		pos := image.Pt((i%perRow)*size.X, (i/perRow)*size.Y)
		montage = imaging.Paste(montage, face, pos)
	}

	return montage, nil
}

// SaveEigenFaces writes a montage of up to num eigenfaces to path, five per row
func (m *TrainedModel) SaveEigenFaces(path string, num int) error {
	if num > m.Len() {
		num = m.Len()
	}

	faces, err := m.EigenFaces(num)
	if err != nil {
		return err
	}

	montage, err := EigenFaceMontage(faces, 5)
	if err != nil {
		return err
	}

	if err := imaging.Save(montage, path); err != nil {
		return fmt.Errorf("failed to save eigenfaces: %w", err)
	}
	return nil
}

// grayFromBytes wraps row-major pixels of a width x height image
func grayFromBytes(px []byte, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, px)
	return img
}
