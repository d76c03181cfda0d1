package eigenface

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when a decoded image has no pixels
var ErrEmptyImage = errors.New("image is empty")

// SupportedImageFormats lists all supported image formats
var SupportedImageFormats = []string{
	".pgm", ".pbm", ".ppm", // Netpbm (BioID corpus)
	".jpg", ".jpeg", // JPEG
	".png",          // PNG
	".bmp",          // Bitmap
	".tif", ".tiff", // TIFF
	".webp", // WebP
}

// IsSupportedImageFormat checks if the file extension is supported
func IsSupportedImageFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supportedExt := range SupportedImageFormats {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// LoadImage loads an image from file path as BGR
func LoadImage(path string) (gocv.Mat, error) {
	return loadImage(path, gocv.IMReadColor)
}

// LoadGrayImage loads an image from file path as 8-bit grayscale
func LoadGrayImage(path string) (gocv.Mat, error) {
	return loadImage(path, gocv.IMReadGrayScale)
}

func loadImage(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	if !IsSupportedImageFormat(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}

	img := gocv.IMRead(path, flags)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("failed to load image %s: %w", path, ErrEmptyImage)
	}

	return img, nil
}

// LoadImageFromBytes decodes an encoded image as 8-bit grayscale
func LoadImageFromBytes(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Empty() {
		img.Close()
		return gocv.NewMat(), ErrEmptyImage
	}

	return img, nil
}

// EncodePNG encodes a Mat as PNG bytes
func EncodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// SaveImage saves a Mat to file
func SaveImage(path string, img gocv.Mat) error {
	if !IsSupportedImageFormat(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("failed to save image: %s", path)
	}

	return nil
}

// ToGray returns a single channel copy of img
func ToGray(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 3:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported channel count: %d", img.Channels())
	}

	return gray, nil
}

// MatToGray copies an 8-bit single channel Mat into an image.Gray
func MatToGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, ErrEmptyImage
	}
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected 8-bit single channel image, got type %v", m.Type())
	}

	// Clone guarantees a continuous buffer, regions are not
	c := m.Clone()
	defer c.Close()

	img := image.NewGray(image.Rect(0, 0, c.Cols(), c.Rows()))
	copy(img.Pix, c.ToBytes())
	return img, nil
}

// GrayToMat copies an image.Gray into a new 8-bit single channel Mat
func GrayToMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	if b.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w:(y+1)*w], img.Pix[start:start+w])
	}

	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create mat: %w", err)
	}
	defer m.Close()

	// detach from the Go buffer
	return m.Clone(), nil
}

// GetImageInfo returns information about an image file
func GetImageInfo(path string) (width, height, channels int, err error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, 0, 0, fmt.Errorf("file does not exist: %s", path)
	}

	img := gocv.IMRead(path, gocv.IMReadUnchanged)
	if img.Empty() {
		return 0, 0, 0, fmt.Errorf("failed to read image: %s", path)
	}
	defer img.Close()

	return img.Cols(), img.Rows(), img.Channels(), nil
}
