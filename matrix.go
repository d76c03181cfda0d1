package eigenface

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Matrix is a dense row-major float32 matrix
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// NewMatrix allocates a zeroed rows x cols matrix
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Empty reports whether the matrix holds no values
func (m Matrix) Empty() bool {
	return m.Rows == 0 || m.Cols == 0
}

// At returns the value at row r, column c
func (m Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

// Set stores v at row r, column c
func (m Matrix) Set(r, c int, v float32) {
	m.Data[r*m.Cols+c] = v
}

// Row returns a copy of row r
func (m Matrix) Row(r int) []float32 {
	row := make([]float32, m.Cols)
	copy(row, m.Data[r*m.Cols:(r+1)*m.Cols])
	return row
}

// Col returns a copy of column c
func (m Matrix) Col(c int) []float32 {
	col := make([]float32, m.Rows)
	for r := 0; r < m.Rows; r++ {
		col[r] = m.Data[r*m.Cols+c]
	}
	return col
}

// matrixFromMat copies a single channel float32 Mat
func matrixFromMat(src gocv.Mat) (Matrix, error) {
	if src.Type() != gocv.MatTypeCV32FC1 {
		return Matrix{}, fmt.Errorf("expected float32 single channel mat, got type %v", src.Type())
	}

	m := NewMatrix(src.Rows(), src.Cols())
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			m.Data[r*m.Cols+c] = src.GetFloatAt(r, c)
		}
	}
	return m, nil
}

// toMat copies the matrix into a new float32 Mat owned by the caller
func (m Matrix) toMat() gocv.Mat {
	dst := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV32FC1)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			dst.SetFloatAt(r, c, m.Data[r*m.Cols+c])
		}
	}
	return dst
}
