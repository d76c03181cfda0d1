package eigenface

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyDataset is returned when training starts without samples
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrSizeMismatch is returned when training images differ in size or type
	ErrSizeMismatch = errors.New("training images differ in size")
)

// Train builds an eigenface model from normalized samples. All samples
// must be 8-bit single channel images of identical size.
//
// The eigenvectors are taken from the N x N matrix (Dt*D)/N instead of the
// pixel covariance D*Dt and mapped back to pixel space through D. They are
// kept in the order the solver returns them, without sorting or truncation.
func Train(samples []Sample) (*TrainedModel, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}

	rows, cols := samples[0].Image.Rows(), samples[0].Image.Cols()
	for _, s := range samples {
		if s.Image.Type() != gocv.MatTypeCV8UC1 {
			return nil, fmt.Errorf("%w: %s is not an 8-bit grayscale image", ErrSizeMismatch, s.Label)
		}
		if s.Image.Rows() != rows || s.Image.Cols() != cols {
			return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d",
				ErrSizeMismatch, s.Label, s.Image.Cols(), s.Image.Rows(), cols, rows)
		}
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: zero sized images", ErrSizeMismatch)
	}

	pixels := make([][]byte, len(samples))
	for i, s := range samples {
		pixels[i] = matBytes(s.Image)
	}

	mean := meanFace(pixels)

	diff := differenceMatrix(pixels, mean)
	defer diff.Close()

	cov := reducedCovariance(diff)
	defer cov.Close()

	values, vectors, err := eigen(cov)
	if err != nil {
		return nil, err
	}
	defer vectors.Close()

	// turn the eigenvectors of the reduced matrix into those of the true covariance
	basis := diff.MultiplyMatrix(vectors)
	defer basis.Close()

	projection := normalizedTranspose(basis)
	defer projection.Close()

	weights := projection.MultiplyMatrix(diff)
	defer weights.Close()

	model := &TrainedModel{Eigenvalues: values}

	model.Mean = grayFromBytes(mean, cols, rows)
	if model.Difference, err = matrixFromMat(diff); err != nil {
		return nil, err
	}
	if model.Covariance, err = matrixFromMat(cov); err != nil {
		return nil, err
	}
	if model.Eigenbasis, err = matrixFromMat(basis); err != nil {
		return nil, err
	}
	if model.Projection, err = matrixFromMat(projection); err != nil {
		return nil, err
	}

	w, err := matrixFromMat(weights)
	if err != nil {
		return nil, err
	}
	model.Weights = make([][]float32, len(samples))
	for i := range samples {
		model.Weights[i] = w.Col(i)
	}

	model.References = make([]Reference, len(samples))
	for i, s := range samples {
		model.References[i] = Reference{
			Label:     s.Label,
			Thumbnail: grayFromBytes(pixels[i], cols, rows),
		}
	}

	return model, nil
}

// meanFace averages every pixel over all images, truncating toward zero
func meanFace(pixels [][]byte) []byte {
	size := len(pixels[0])

	// 32 bits hold the sum of 2^24 8-bit images
	sum := make([]uint32, size)
	for _, px := range pixels {
		for i, v := range px {
			sum[i] += uint32(v)
		}
	}

	n := uint32(len(pixels))
	mean := make([]byte, size)
	for i, v := range sum {
		mean[i] = byte(v / n)
	}
	return mean
}

// differenceMatrix stacks every mean centered image as a float32 column
func differenceMatrix(pixels [][]byte, mean []byte) gocv.Mat {
	diff := gocv.NewMatWithSize(len(mean), len(pixels), gocv.MatTypeCV32FC1)
	for i, px := range pixels {
		for k, v := range px {
			diff.SetFloatAt(k, i, float32(v)-float32(mean[k]))
		}
	}
	return diff
}

// reducedCovariance returns (Dt*D)/N
func reducedCovariance(diff gocv.Mat) gocv.Mat {
	t := diff.T()
	defer t.Close()

	cov := t.MultiplyMatrix(diff)
	cov.DivideFloat(float32(diff.Cols()))
	return cov
}

// eigen decomposes a symmetric matrix. The returned Mat holds one
// eigenvector per column, in solver order.
func eigen(cov gocv.Mat) ([]float32, gocv.Mat, error) {
	values := gocv.NewMat()
	defer values.Close()
	rowVectors := gocv.NewMat()
	defer rowVectors.Close()

	if ok := gocv.Eigen(cov, &values, &rowVectors); !ok || rowVectors.Empty() {
		return nil, gocv.NewMat(), errors.New("eigen decomposition failed")
	}

	out := make([]float32, values.Rows())
	for i := range out {
		out[i] = values.GetFloatAt(i, 0)
	}

	// OpenCV stores eigenvectors as rows
	return out, rowVectors.T(), nil
}

// normalizedTranspose returns the transpose of basis with every row scaled
// to unit L2 norm. All-zero rows stay zero.
func normalizedTranspose(basis gocv.Mat) gocv.Mat {
	t := basis.T()
	for i := 0; i < t.Rows(); i++ {
		row := t.RowRange(i, i+1)
		gocv.Normalize(row, &row, 1, 0, gocv.NormL2)
		row.Close()
	}
	return t
}

// matBytes copies the pixels of an 8-bit image in row-major order
func matBytes(m gocv.Mat) []byte {
	c := m.Clone()
	defer c.Close()

	px := make([]byte, c.Rows()*c.Cols())
	copy(px, c.ToBytes())
	return px
}
