package eigenface

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrMissingKey is returned when a model document lacks an expected key
var ErrMissingKey = errors.New("model document is missing a key")

const modelFormat = "eigenface/v1"

// Keys of the model document
const (
	keyFormat     = "format"
	keySrcNum     = "srcNum"
	keyMean       = "AvgMat"
	keyProjection = "TransEigenVector"
	keyWeight     = "Training"
	keySrc        = "src"
	keySrcName    = "srcName"
)

// matNode is a matrix entry of the model document
type matNode struct {
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Type   string    `json:"type"`
	Bytes  []byte    `json:"bytes,omitempty"`
	Floats []float32 `json:"floats,omitempty"`
}

func grayNode(img *image.Gray) matNode {
	b := img.Bounds()
	px := make([]byte, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		px = append(px, img.Pix[start:start+b.Dx()]...)
	}
	return matNode{Rows: b.Dy(), Cols: b.Dx(), Type: "8U", Bytes: px}
}

func floatNode(m Matrix) matNode {
	return matNode{Rows: m.Rows, Cols: m.Cols, Type: "32F", Floats: m.Data}
}

func (n matNode) gray() (*image.Gray, error) {
	if n.Type != "8U" || len(n.Bytes) != n.Rows*n.Cols {
		return nil, fmt.Errorf("malformed 8U matrix %dx%d with %d values", n.Rows, n.Cols, len(n.Bytes))
	}
	return grayFromBytes(n.Bytes, n.Cols, n.Rows), nil
}

func (n matNode) matrix() (Matrix, error) {
	if n.Type != "32F" || len(n.Floats) != n.Rows*n.Cols {
		return Matrix{}, fmt.Errorf("malformed 32F matrix %dx%d with %d values", n.Rows, n.Cols, len(n.Floats))
	}
	return Matrix{Rows: n.Rows, Cols: n.Cols, Data: n.Floats}, nil
}

// EncodeModel writes the persisted fields of m as a JSON document
func EncodeModel(w io.Writer, m *TrainedModel) error {
	if m.Mean == nil {
		return errors.New("model has no mean face")
	}

	n := m.Len()
	doc := map[string]any{
		keyFormat:     modelFormat,
		keySrcNum:     n,
		keyMean:       grayNode(m.Mean),
		keyProjection: floatNode(m.Projection),
	}
	for i, weight := range m.Weights {
		doc[keyWeight+strconv.Itoa(i)] = floatNode(Matrix{Rows: len(weight), Cols: 1, Data: weight})
	}
	for i, ref := range m.References {
		if ref.Thumbnail != nil {
			doc[keySrc+strconv.Itoa(i)] = grayNode(ref.Thumbnail)
		}
		doc[keySrcName+strconv.Itoa(i)] = ref.Label
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	return nil
}

// DecodeModel reads a document written by EncodeModel.
// Only the persisted fields of the model are populated.
func DecodeModel(r io.Reader) (*TrainedModel, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	get := func(key string, v any) error {
		raw, ok := doc[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		return nil
	}

	if raw, ok := doc[keyFormat]; ok {
		var format string
		if err := json.Unmarshal(raw, &format); err != nil || format != modelFormat {
			return nil, fmt.Errorf("unsupported model format %s", raw)
		}
	}

	var n int
	if err := get(keySrcNum, &n); err != nil {
		return nil, err
	}

	var node matNode
	if err := get(keyMean, &node); err != nil {
		return nil, err
	}
	mean, err := node.gray()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyMean, err)
	}

	node = matNode{}
	if err := get(keyProjection, &node); err != nil {
		return nil, err
	}
	projection, err := node.matrix()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyProjection, err)
	}

	m := &TrainedModel{
		Mean:       mean,
		Projection: projection,
		Weights:    make([][]float32, n),
		References: make([]Reference, n),
	}

	for i := 0; i < n; i++ {
		key := keyWeight + strconv.Itoa(i)
		node = matNode{}
		if err := get(key, &node); err != nil {
			return nil, err
		}
		weight, err := node.matrix()
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		m.Weights[i] = weight.Data
	}

	for i := 0; i < n; i++ {
		key := keySrc + strconv.Itoa(i)
		if _, ok := doc[key]; ok {
			node = matNode{}
			if err := get(key, &node); err != nil {
				return nil, err
			}
			if m.References[i].Thumbnail, err = node.gray(); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
		}
		if err := get(keySrcName+strconv.Itoa(i), &m.References[i].Label); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// SaveModel writes m to path
func SaveModel(m *TrainedModel, path string) error {
	var buf bytes.Buffer
	if err := EncodeModel(&buf, m); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// LoadModel reads a model written by SaveModel
func LoadModel(path string) (*TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	return DecodeModel(f)
}

// ModelStorage stores trained models by name
type ModelStorage interface {
	// SaveModel stores a model under name, replacing any previous one
	SaveModel(name string, model *TrainedModel) error

	// LoadModel loads the model stored under name
	LoadModel(name string) (*TrainedModel, error)

	// DeleteModel removes the model stored under name
	DeleteModel(name string) error

	// ModelExists checks if a model is stored under name
	ModelExists(name string) (bool, error)

	// ListModels returns all stored names, sorted
	ListModels() ([]string, error)

	// Close closes the storage
	Close() error
}

// MemoryStorage keeps encoded models in memory (fast but volatile)
type MemoryStorage struct {
	models map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		models: make(map[string][]byte),
	}
}

func (s *MemoryStorage) SaveModel(name string, model *TrainedModel) error {
	// encoding gives a deep copy, later changes to model are not seen
	var buf bytes.Buffer
	if err := EncodeModel(&buf, model); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[name] = buf.Bytes()
	return nil
}

func (s *MemoryStorage) LoadModel(name string) (*TrainedModel, error) {
	s.mu.RLock()
	data, exists := s.models[name]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("model not found: %s", name)
	}

	return DecodeModel(bytes.NewReader(data))
}

func (s *MemoryStorage) DeleteModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.models[name]; !exists {
		return fmt.Errorf("model not found: %s", name)
	}

	delete(s.models, name)
	return nil
}

func (s *MemoryStorage) ModelExists(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.models[name]
	return exists, nil
}

func (s *MemoryStorage) ListModels() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

// FileStorage keeps one JSON document per model in a directory
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStorage creates a new filesystem storage
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStorage{
		baseDir: baseDir,
	}, nil
}

// ModelPath returns the file that holds the model stored under name
func (s *FileStorage) ModelPath(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

func (s *FileStorage) SaveModel(name string, model *TrainedModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SaveModel(model, s.ModelPath(name))
}

func (s *FileStorage) LoadModel(name string) (*TrainedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.ModelPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("model not found: %s", name)
	}

	return LoadModel(path)
}

func (s *FileStorage) DeleteModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.ModelPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("model not found: %s", name)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete model file: %w", err)
	}

	return nil
}

func (s *FileStorage) ModelExists(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.ModelPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileStorage) ListModels() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

func (s *FileStorage) Close() error {
	return nil
}

// ModelSummary describes a stored model
type ModelSummary struct {
	Name    string
	Samples int
	Size    image.Point
}

// SummarizeModels loads every model of storage and describes it.
// Models that fail to load are skipped.
func SummarizeModels(storage ModelStorage) ([]ModelSummary, error) {
	names, err := storage.ListModels()
	if err != nil {
		return nil, err
	}

	summaries := make([]ModelSummary, 0, len(names))
	for _, name := range names {
		m, err := storage.LoadModel(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, ModelSummary{
			Name:    name,
			Samples: m.Len(),
			Size:    m.Size(),
		})
	}

	return summaries, nil
}
