package eigenface

import (
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestDefaultPigoParams(t *testing.T) {
	p := DefaultPigoParams()
	if p.MinSize != 100 || p.MaxSize != 1000 {
		t.Errorf("Unexpected size range %d-%d", p.MinSize, p.MaxSize)
	}
	if p.QualityThreshold != 5.0 {
		t.Errorf("Expected quality threshold 5.0, got %f", p.QualityThreshold)
	}
}

func TestNewCascadeDetector_Missing(t *testing.T) {
	if _, err := NewCascadeDetector(filepath.Join(t.TempDir(), "missing.xml")); err == nil {
		t.Error("Expected error for missing cascade")
	}
}

func TestNewPigoDetector_Missing(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewPigoDetector(filepath.Join(dir, "facefinder"), DefaultPigoParams()); err == nil {
		t.Error("Expected error for missing cascade")
	}
}

func TestPigoDetector_DetectFaces(t *testing.T) {
	path := skipIfCascadeNotAvailable(t, "pigo-facefinder")

	d, err := NewPigoDetector(path, DefaultPigoParams())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	// uniform gray holds no face
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC1)
	defer img.Close()

	if faces := d.DetectFaces(img); len(faces) != 0 {
		t.Errorf("Expected no faces, got %v", faces)
	}

	color := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer color.Close()
	if faces := d.DetectFaces(color); faces != nil {
		t.Errorf("Expected nil for color input, got %v", faces)
	}
}

func TestCascadeDetector_DetectFaces(t *testing.T) {
	path := skipIfCascadeNotAvailable(t, "haarcascade-frontalface")

	d, err := NewCascadeDetector(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC1)
	defer img.Close()

	if faces := d.DetectFaces(img); len(faces) != 0 {
		t.Errorf("Expected no faces, got %v", faces)
	}
}
