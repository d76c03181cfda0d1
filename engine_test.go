package eigenface

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

// skipIfCascadeNotAvailable skips tests that need a downloaded cascade
func skipIfCascadeNotAvailable(t *testing.T, key string) string {
	t.Helper()

	path, err := GetResourcePath("./testdata", key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("Cascade %s not available (run eigenface download --dir testdata)", key)
	}
	return path
}

func TestNewEngine_Detectors(t *testing.T) {
	t.Run("template only", func(t *testing.T) {
		e, err := NewEngine(Config{Detector: DetectorNone}, WithLogger(discardLogger()))
		if err != nil {
			t.Fatal(err)
		}
		defer e.Close()
		if e.Detector() != nil {
			t.Error("Expected no detector")
		}
	})

	t.Run("empty kind", func(t *testing.T) {
		e, err := NewEngine(Config{}, WithLogger(discardLogger()))
		if err != nil {
			t.Fatal(err)
		}
		if e.Detector() != nil {
			t.Error("Expected no detector")
		}
	})

	t.Run("missing haar cascade falls back", func(t *testing.T) {
		e, err := NewEngine(Config{
			Detector:    DetectorHaar,
			CascadeFile: filepath.Join(t.TempDir(), "missing.xml"),
		}, WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("Missing Haar cascade should not fail: %v", err)
		}
		if e.Detector() != nil {
			t.Error("Expected template fallback")
		}
	})

	t.Run("missing pigo cascade fails", func(t *testing.T) {
		_, err := NewEngine(Config{
			Detector:    DetectorPigo,
			CascadeFile: filepath.Join(t.TempDir(), "facefinder"),
		}, WithLogger(discardLogger()))
		if err == nil {
			t.Error("Expected error for missing pigo cascade")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := NewEngine(Config{Detector: "dnn"}); err == nil {
			t.Error("Expected error for unknown detector")
		}
	})

	t.Run("injected detector", func(t *testing.T) {
		d := &fixedDetector{}
		e, err := NewEngine(Config{Detector: "ignored"}, WithDetector(d))
		if err != nil {
			t.Fatal(err)
		}
		if e.Detector() != d {
			t.Error("Expected injected detector")
		}
		e.Close()
		if !d.closed {
			t.Error("Close should release the detector")
		}
	})
}

func TestNewEngine_Options(t *testing.T) {
	e, err := NewEngine(Config{},
		WithMinFaceSize(80),
		WithMaxFaceSize(800),
		WithEyeRequirement(false),
	)
	if err != nil {
		t.Fatal(err)
	}

	if e.pigoParams.MinSize != 80 || e.pigoParams.MaxSize != 800 {
		t.Errorf("Unexpected pigo params %+v", e.pigoParams)
	}
	if e.requireEyes {
		t.Error("Expected eye requirement disabled")
	}

	custom := PigoParams{MinSize: 20, MaxSize: 200, ShiftFactor: 0.2, ScaleFactor: 1.2, IoUThreshold: 0.3, QualityThreshold: 3}
	e, err = NewEngine(Config{}, WithPigoParams(custom))
	if err != nil {
		t.Fatal(err)
	}
	if e.pigoParams != custom {
		t.Errorf("Expected %+v, got %+v", custom, e.pigoParams)
	}
}

func TestEngine_TrainAndRecognize(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, 5, 131)

	var calls int
	e, err := NewEngine(Config{Detector: DetectorNone},
		WithLogger(discardLogger()),
		WithProgress(func(done, total int) { calls++ }),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	model, err := e.Train(dir, 4)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if model.Len() != 4 {
		t.Errorf("Expected 4 samples, got %d", model.Len())
	}
	if model.Size() != image.Pt(79, 79) {
		t.Errorf("Expected 79x79 faces, got %v", model.Size())
	}
	if calls == 0 {
		t.Error("Progress callback was not called")
	}

	r, err := e.NewRecognizer(model)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	query, err := LoadGrayImage(filepath.Join(dir, "BioID_0003.pgm"))
	if err != nil {
		t.Fatal(err)
	}
	defer query.Close()

	match, err := r.Recognize(query, corpusEyes)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if match.Index != 3 || filepath.Base(match.Label) != "BioID_0003.pgm" {
		t.Errorf("Expected sample 3, got %d (%s)", match.Index, match.Label)
	}
}

func TestEngine_TrainEmpty(t *testing.T) {
	e, err := NewEngine(Config{}, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Train(t.TempDir(), -1); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Expected ErrEmptyDataset, got %v", err)
	}

	// loaded samples without eyes or detector hits have no face region
	dir := t.TempDir()
	writeCorpus(t, dir, 2, 137)
	for _, name := range []string{"BioID_0000.eye", "BioID_0001.eye"} {
		os.Remove(filepath.Join(dir, name))
	}

	e, err = NewEngine(Config{}, WithLogger(discardLogger()), WithEyeRequirement(false))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Train(dir, -1); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Expected ErrEmptyDataset, got %v", err)
	}
}

func TestEngine_HaarCascade(t *testing.T) {
	path := skipIfCascadeNotAvailable(t, "haarcascade-frontalface")

	e, err := NewEngine(Config{Detector: DetectorHaar, CascadeFile: path}, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if e.Detector() == nil {
		t.Fatal("Expected a Haar detector")
	}

	// random noise holds no face, the template takes over
	dir := t.TempDir()
	writeCorpus(t, dir, 3, 139)
	model, err := e.Train(dir, -1)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if model.Len() != 3 {
		t.Errorf("Expected 3 samples, got %d", model.Len())
	}
}

func TestEngine_PigoCascade(t *testing.T) {
	path := skipIfCascadeNotAvailable(t, "pigo-facefinder")

	e, err := NewEngine(Config{Detector: DetectorPigo, CascadeFile: path}, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, ok := e.Detector().(*PigoDetector); !ok {
		t.Fatalf("Expected a pigo detector, got %T", e.Detector())
	}
}
