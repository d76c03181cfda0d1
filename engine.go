package eigenface

import (
	"errors"
	"fmt"
	"log/slog"
)

// Config holds the basic configuration for an Engine
type Config struct {
	// Detector selects the face detector, DetectorNone if empty
	Detector DetectorKind
	// CascadeFile is the Haar XML or pigo cascade for Detector
	CascadeFile string
}

// Engine wires the detector, corpus loader, normalizer and trainer
// from one explicit configuration
type Engine struct {
	detector    FaceDetector
	logger      *slog.Logger
	pigoParams  PigoParams
	requireEyes bool
	onProgress  ProgressFunc
}

// Option is a function that configures an Engine
type Option func(*Engine)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPigoParams sets custom Pigo detector parameters
func WithPigoParams(params PigoParams) Option {
	return func(e *Engine) {
		e.pigoParams = params
	}
}

// WithMinFaceSize sets the minimum face size for Pigo detection
func WithMinFaceSize(size int) Option {
	return func(e *Engine) {
		e.pigoParams.MinSize = size
	}
}

// WithMaxFaceSize sets the maximum face size for Pigo detection
func WithMaxFaceSize(size int) Option {
	return func(e *Engine) {
		e.pigoParams.MaxSize = size
	}
}

// WithEyeRequirement controls whether corpus samples need an eye annotation
func WithEyeRequirement(required bool) Option {
	return func(e *Engine) {
		e.requireEyes = required
	}
}

// WithProgress registers a corpus loading progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// WithDetector uses detector instead of the one named by Config
func WithDetector(detector FaceDetector) Option {
	return func(e *Engine) {
		e.detector = detector
	}
}

// NewEngine creates an Engine. When the Haar cascade cannot be loaded the
// engine falls back to the eye-face template and logs a warning.
func NewEngine(config Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		pigoParams:  DefaultPigoParams(),
		requireEyes: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.detector != nil {
		return e, nil
	}

	switch config.Detector {
	case DetectorHaar:
		d, err := NewCascadeDetector(config.CascadeFile)
		if err != nil {
			e.logger.Warn("face cascade classifier not found, using eye-face template instead", "error", err)
			break
		}
		e.detector = d
	case DetectorPigo:
		d, err := NewPigoDetector(config.CascadeFile, e.pigoParams)
		if err != nil {
			return nil, err
		}
		e.detector = d
	case DetectorNone, "":
	default:
		return nil, fmt.Errorf("unknown detector %q", config.Detector)
	}

	return e, nil
}

// Close releases the detector
func (e *Engine) Close() error {
	if e.detector != nil {
		return e.detector.Close()
	}
	return nil
}

// Detector returns the configured detector, nil for template only
func (e *Engine) Detector() FaceDetector {
	return e.detector
}

// LoadCorpus loads up to max samples from dir with the engine settings
func (e *Engine) LoadCorpus(dir string, max int) (*Dataset, error) {
	opts := []LoadOption{WithLoadLogger(e.logger)}
	if !e.requireEyes {
		opts = append(opts, WithoutEyeRequirement())
	}
	if e.onProgress != nil {
		opts = append(opts, WithLoadProgress(e.onProgress))
	}
	return LoadCorpus(dir, max, opts...)
}

// Train loads a corpus, normalizes it and trains a model
func (e *Engine) Train(dir string, max int) (*TrainedModel, error) {
	ds, err := e.LoadCorpus(dir, max)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	return e.TrainDataset(ds)
}

// TrainDataset normalizes the samples of ds and trains a model
func (e *Engine) TrainDataset(ds *Dataset) (*TrainedModel, error) {
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	faces, size := NewNormalizer(e.detector, e.logger).NormalizeBatch(ds.Samples)
	defer func() {
		for i := range faces {
			faces[i].Close()
		}
	}()
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no sample has a face region", ErrEmptyDataset)
	}

	e.logger.Info("training", "samples", len(faces), "rejected", ds.Len()-len(faces), "width", size.X, "height", size.Y)

	model, err := Train(faces)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// NewRecognizer creates a recognizer for model that shares the engine detector
func (e *Engine) NewRecognizer(model *TrainedModel, opts ...RecognizerOption) (*Recognizer, error) {
	opts = append([]RecognizerOption{WithRecognizerLogger(e.logger)}, opts...)
	r, err := NewRecognizer(model, e.detector, opts...)
	if err != nil {
		if errors.Is(err, ErrEmptyDataset) {
			return nil, fmt.Errorf("model has no samples: %w", err)
		}
		return nil, err
	}
	return r, nil
}
