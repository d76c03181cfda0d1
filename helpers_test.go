package eigenface

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// Test helpers

// discardLogger keeps test output quiet
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// randomGray creates a width x height image of uniformly random pixels
func randomGray(t testing.TB, rng *rand.Rand, width, height int) gocv.Mat {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	rng.Read(img.Pix)

	m, err := GrayToMat(img)
	if err != nil {
		t.Fatalf("GrayToMat() error = %v", err)
	}
	return m
}

// grayMat creates an 8-bit image from row-major pixels
func grayMat(t testing.TB, width, height int, px []byte) gocv.Mat {
	t.Helper()

	m, err := GrayToMat(grayFromBytes(px, width, height))
	if err != nil {
		t.Fatalf("GrayToMat() error = %v", err)
	}
	return m
}

// fullFrameDetector reports the whole image as a single face
type fullFrameDetector struct{}

func (fullFrameDetector) DetectFaces(gray gocv.Mat) []image.Rectangle {
	return []image.Rectangle{image.Rect(0, 0, gray.Cols(), gray.Rows())}
}

func (fullFrameDetector) Close() error { return nil }

// fixedDetector returns the same candidates for every image
type fixedDetector struct {
	faces  []image.Rectangle
	closed bool
}

func (d *fixedDetector) DetectFaces(gocv.Mat) []image.Rectangle {
	return d.faces
}

func (d *fixedDetector) Close() error {
	d.closed = true
	return nil
}

// corpus image geometry: eyes 30px apart give a 79px template square at (15,8)
const (
	corpusWidth  = 120
	corpusHeight = 100
)

var corpusEyes = EyePosition{Left: image.Pt(40, 40), Right: image.Pt(70, 40)}

// writeCorpus writes n random BioID style samples (.pgm plus .eye) into dir
func writeCorpus(t testing.TB, dir string, n int, seed int64) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		img := randomGray(t, rng, corpusWidth, corpusHeight)
		name := filepath.Join(dir, fmt.Sprintf("BioID_%04d", i))
		if !gocv.IMWrite(name+".pgm", img) {
			img.Close()
			t.Fatalf("failed to write %s.pgm", name)
		}
		img.Close()

		eye := fmt.Sprintf("#LX\tLY\tRX\tRY\n%d\t%d\t%d\t%d\n",
			corpusEyes.Right.X, corpusEyes.Right.Y, corpusEyes.Left.X, corpusEyes.Left.Y)
		if err := os.WriteFile(name+".eye", []byte(eye), 0644); err != nil {
			t.Fatalf("failed to write %s.eye: %v", name, err)
		}
	}
}

// trainRandom trains a model on n random images that already have the canonical size
func trainRandom(t testing.TB, n, width, height int, seed int64) (*TrainedModel, []Sample) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Image: randomGray(t, rng, width, height),
			Eyes:  InvalidEyePosition,
			Label: fmt.Sprintf("face-%d", i),
		}
	}

	faces, _ := NewNormalizer(fullFrameDetector{}, discardLogger()).NormalizeBatch(samples)
	defer func() {
		for i := range faces {
			faces[i].Close()
		}
	}()

	model, err := Train(faces)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return model, samples
}

func closeSamples(samples []Sample) {
	for i := range samples {
		samples[i].Close()
	}
}
