package eigenface

import (
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseEyePosition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EyePosition
		wantErr error
	}{
		{
			name:  "bioid layout",
			input: "#LX\tLY\tRX\tRY\n130\t75\t59\t75\n",
			want:  EyePosition{Left: image.Pt(59, 75), Right: image.Pt(130, 75)},
		},
		{
			name:  "values split over lines",
			input: "#LX LY RX RY\n232 110\n161 110\n",
			want:  EyePosition{Left: image.Pt(161, 110), Right: image.Pt(232, 110)},
		},
		{
			name:  "trailing values ignored",
			input: "header\n1 2 3 4 5 6\n",
			want:  EyePosition{Left: image.Pt(3, 4), Right: image.Pt(1, 2)},
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrInvalidAnnotation,
		},
		{
			name:    "header only",
			input:   "#LX LY RX RY\n",
			wantErr: ErrInvalidAnnotation,
		},
		{
			name:    "too few values",
			input:   "#LX LY RX RY\n1 2 3\n",
			wantErr: ErrInvalidAnnotation,
		},
		{
			name:    "not a number",
			input:   "#LX LY RX RY\n1 2 x 4\n",
			wantErr: ErrInvalidAnnotation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEyePosition(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEyePosition() error = %v, want %v", err, tt.wantErr)
				}
				if got.Valid() {
					t.Errorf("Expected invalid position on error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEyePosition() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseEyePosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadEyePosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BioID_0000.eye")
	if err := os.WriteFile(path, []byte("#LX\tLY\tRX\tRY\n232\t110\t161\t110\n"), 0644); err != nil {
		t.Fatal(err)
	}

	eyes, err := LoadEyePosition(path)
	if err != nil {
		t.Fatalf("LoadEyePosition() error = %v", err)
	}
	if eyes.Left != image.Pt(161, 110) || eyes.Right != image.Pt(232, 110) {
		t.Errorf("Unexpected eyes %v", eyes)
	}

	if _, err := LoadEyePosition(filepath.Join(dir, "missing.eye")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEyePosition_Geometry(t *testing.T) {
	eyes := EyePosition{Left: image.Pt(10, 20), Right: image.Pt(13, 24)}

	if d := eyes.Distance(); math.Abs(d-5) > 1e-9 {
		t.Errorf("Distance() = %f, want 5", d)
	}

	moved := eyes.Offset(image.Pt(10, 10))
	if moved.Left != image.Pt(0, 10) || moved.Right != image.Pt(3, 14) {
		t.Errorf("Offset() = %v", moved)
	}

	scaled := eyes.Scale(0.5)
	if scaled.Left != image.Pt(5, 10) || scaled.Right != image.Pt(6, 12) {
		t.Errorf("Scale() = %v", scaled)
	}

	if InvalidEyePosition.Valid() {
		t.Error("InvalidEyePosition should not be valid")
	}
	if InvalidEyePosition.Offset(image.Pt(5, 5)) != InvalidEyePosition {
		t.Error("Offset should keep the invalid sentinel")
	}
	if InvalidEyePosition.Scale(2) != InvalidEyePosition {
		t.Error("Scale should keep the invalid sentinel")
	}
}
