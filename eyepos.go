package eigenface

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidAnnotation is returned when an eye annotation cannot be parsed
var ErrInvalidAnnotation = errors.New("invalid eye annotation")

// EyePosition holds the eye centers of a face in image coordinates
type EyePosition struct {
	Left  image.Point
	Right image.Point
}

// InvalidEyePosition marks a sample without a usable eye annotation
var InvalidEyePosition = EyePosition{
	Left:  image.Pt(-1, -1),
	Right: image.Pt(-1, -1),
}

// Valid reports whether the position is not the invalid sentinel
func (e EyePosition) Valid() bool {
	return e != InvalidEyePosition
}

// Distance returns the Euclidean distance between both eyes
func (e EyePosition) Distance() float64 {
	dx := float64(e.Right.X - e.Left.X)
	dy := float64(e.Right.Y - e.Left.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Offset moves both eyes into the frame whose origin is at p
func (e EyePosition) Offset(p image.Point) EyePosition {
	if !e.Valid() {
		return e
	}
	return EyePosition{Left: e.Left.Sub(p), Right: e.Right.Sub(p)}
}

// Scale multiplies every coordinate by rate, truncating toward zero
func (e EyePosition) Scale(rate float64) EyePosition {
	if !e.Valid() {
		return e
	}
	scale := func(v int) int { return int(float64(v) * rate) }
	return EyePosition{
		Left:  image.Pt(scale(e.Left.X), scale(e.Left.Y)),
		Right: image.Pt(scale(e.Right.X), scale(e.Right.Y)),
	}
}

func (e EyePosition) String() string {
	if !e.Valid() {
		return "eyes(invalid)"
	}
	return fmt.Sprintf("eyes(L%v R%v)", e.Left, e.Right)
}

// ParseEyePosition reads an annotation in the BioID layout.
// The first line is a header and is ignored. The second line holds
// four integers in RIGHT-x RIGHT-y LEFT-x LEFT-y order.
func ParseEyePosition(r io.Reader) (EyePosition, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return InvalidEyePosition, fmt.Errorf("failed to read annotation header: %w", err)
		}
		return InvalidEyePosition, fmt.Errorf("%w: empty annotation", ErrInvalidAnnotation)
	}

	values := make([]int, 0, 4)
	for len(values) < 4 && scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			v, err := strconv.Atoi(field)
			if err != nil {
				return InvalidEyePosition, fmt.Errorf("%w: %q is not an integer", ErrInvalidAnnotation, field)
			}
			values = append(values, v)
			if len(values) == 4 {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return InvalidEyePosition, fmt.Errorf("failed to read annotation: %w", err)
	}
	if len(values) < 4 {
		return InvalidEyePosition, fmt.Errorf("%w: expected 4 coordinates, got %d", ErrInvalidAnnotation, len(values))
	}

	return EyePosition{
		Right: image.Pt(values[0], values[1]),
		Left:  image.Pt(values[2], values[3]),
	}, nil
}

// LoadEyePosition parses the annotation file at path
func LoadEyePosition(path string) (EyePosition, error) {
	f, err := os.Open(path)
	if err != nil {
		return InvalidEyePosition, err
	}
	defer f.Close()

	return ParseEyePosition(f)
}
