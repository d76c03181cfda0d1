package eigenface

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Sample is one labeled face image of the corpus
type Sample struct {
	Image gocv.Mat
	Eyes  EyePosition
	Label string
}

// Close releases the sample image
func (s *Sample) Close() error {
	return s.Image.Close()
}

// Dataset owns the images of a loaded corpus
type Dataset struct {
	Samples []Sample
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Close releases every sample image
func (d *Dataset) Close() error {
	var errs []error
	for i := range d.Samples {
		if err := d.Samples[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.Samples = nil
	return errors.Join(errs...)
}

// WriteImages writes every sample image to dir as <index>.jpg
func (d *Dataset) WriteImages(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i, s := range d.Samples {
		if err := SaveImage(filepath.Join(dir, strconv.Itoa(i)+".jpg"), s.Image); err != nil {
			return err
		}
	}
	return nil
}

// ProgressFunc reports how many corpus candidates have been processed
type ProgressFunc func(done, total int)

type loadConfig struct {
	imageExt    string
	eyeExt      string
	requireEyes bool
	logger      *slog.Logger
	onProgress  ProgressFunc
}

// LoadOption configures LoadCorpus
type LoadOption func(*loadConfig)

// WithImageExt sets the extension of corpus images (default ".pgm")
func WithImageExt(ext string) LoadOption {
	return func(c *loadConfig) {
		c.imageExt = ext
	}
}

// WithEyeExt sets the extension of eye annotations (default ".eye")
func WithEyeExt(ext string) LoadOption {
	return func(c *loadConfig) {
		c.eyeExt = ext
	}
}

// WithoutEyeRequirement accepts samples that have no eye annotation.
// Use it only when a face detector can locate every face.
func WithoutEyeRequirement() LoadOption {
	return func(c *loadConfig) {
		c.requireEyes = false
	}
}

// WithLoadLogger sets the logger used for rejected samples
func WithLoadLogger(logger *slog.Logger) LoadOption {
	return func(c *loadConfig) {
		c.logger = logger
	}
}

// WithLoadProgress registers a progress callback
func WithLoadProgress(fn ProgressFunc) LoadOption {
	return func(c *loadConfig) {
		c.onProgress = fn
	}
}

// LoadCorpus loads up to maxCount valid samples from dir.
// A negative maxCount means no limit. Candidates that cannot be decoded
// are logged and skipped; an empty dataset is not an error.
func LoadCorpus(dir string, maxCount int, opts ...LoadOption) (*Dataset, error) {
	cfg := loadConfig{
		imageExt:    ".pgm",
		eyeExt:      ".eye",
		requireEyes: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), cfg.imageExt) {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, entry.Name()))
	}

	ds := &Dataset{}
	for i, path := range candidates {
		if maxCount >= 0 && ds.Len() >= maxCount {
			break
		}

		sample, err := loadSample(path, cfg)
		if cfg.onProgress != nil {
			cfg.onProgress(i+1, len(candidates))
		}
		if err != nil {
			cfg.logger.Warn("skipping corpus entry", "path", path, "error", err)
			continue
		}
		ds.Samples = append(ds.Samples, sample)
	}

	if ds.Len() == 0 {
		cfg.logger.Warn("no usable samples found", "dir", dir)
	} else {
		cfg.logger.Info("corpus loaded", "dir", dir, "samples", ds.Len(), "candidates", len(candidates))
	}

	return ds, nil
}

// LoadSample loads one image and its sibling annotation, if any
func LoadSample(imagePath, eyePath string) (Sample, error) {
	img, err := LoadGrayImage(imagePath)
	if err != nil {
		return Sample{}, err
	}

	eyes := InvalidEyePosition
	if eyePath != "" {
		eyes, err = LoadEyePosition(eyePath)
		if err != nil {
			img.Close()
			return Sample{}, fmt.Errorf("failed to load eye position: %w", err)
		}
	}

	return Sample{Image: img, Eyes: eyes, Label: imagePath}, nil
}

func loadSample(path string, cfg loadConfig) (Sample, error) {
	eyePath := strings.TrimSuffix(path, filepath.Ext(path)) + cfg.eyeExt

	eyes, err := LoadEyePosition(eyePath)
	if err != nil {
		if cfg.requireEyes {
			return Sample{}, fmt.Errorf("eye annotation unavailable: %w", err)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			cfg.logger.Debug("ignoring unreadable eye annotation", "path", eyePath, "error", err)
		}
		eyes = InvalidEyePosition
	}

	img, err := LoadGrayImage(path)
	if err != nil {
		return Sample{}, err
	}

	return Sample{Image: img, Eyes: eyes, Label: path}, nil
}
