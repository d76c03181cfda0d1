package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib-x/eigenface"
	"gocv.io/x/gocv"
)

// writeTestCorpus writes n random 120x100 images with eyes 30px apart
func writeTestCorpus(t *testing.T, dir string, n int) {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 120, 100))
		rng.Read(img.Pix)

		m, err := eigenface.GrayToMat(img)
		if err != nil {
			t.Fatal(err)
		}
		name := filepath.Join(dir, fmt.Sprintf("BioID_%04d", i))
		ok := gocv.IMWrite(name+".pgm", m)
		m.Close()
		if !ok {
			t.Fatalf("failed to write %s.pgm", name)
		}

		if err := os.WriteFile(name+".eye", []byte("#LX\tLY\tRX\tRY\n70\t40\t40\t40\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--detector", "none", "--log-level", "error"}, args...))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("eigenface %v: %v", args, err)
	}
	return out.String()
}

func TestTrainRecognizeModels(t *testing.T) {
	corpus := t.TempDir()
	writeTestCorpus(t, corpus, 3)

	modelDir := t.TempDir()
	modelPath := filepath.Join(modelDir, "bioid.json")
	preview := filepath.Join(modelDir, "eigenfaces.png")

	out := execute(t, "", "train", "--data", corpus, "--model", modelPath, "--eigenfaces", preview)
	if !strings.Contains(out, "Saved model with 3 samples (79x79)") {
		t.Errorf("Unexpected train output: %s", out)
	}
	if _, err := os.Stat(preview); err != nil {
		t.Errorf("Eigenface preview not written: %v", err)
	}

	query := func(i int) string {
		return filepath.Join(corpus, fmt.Sprintf("BioID_%04d", i))
	}
	stdin := fmt.Sprintf("%s.pgm %s.eye\n\n%s.pgm %s.eye\nquit\n%s.pgm %s.eye\n",
		query(1), query(1), query(2), query(2), query(0), query(0))

	out = execute(t, stdin, "recognize", "--model", modelPath, query(0)+".pgm", query(0)+".eye")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 results before quit, got %d: %q", len(lines), out)
	}
	for i, want := range []int{0, 1, 2} {
		fields := strings.Split(lines[i], "\t")
		if len(fields) != 4 {
			t.Fatalf("Unexpected result line %q", lines[i])
		}
		if filepath.Base(fields[1]) != fmt.Sprintf("BioID_%04d.pgm", want) {
			t.Errorf("query %d matched %s", want, fields[1])
		}
		if fields[3] != "match" {
			t.Errorf("query %d status %s", want, fields[3])
		}
	}

	out = execute(t, "", "models", "--dir", modelDir)
	if !strings.Contains(out, "bioid") || !strings.Contains(out, "79x79") {
		t.Errorf("Unexpected models output: %s", out)
	}
}

func TestDownloadList(t *testing.T) {
	out := execute(t, "", "download", "--list")
	for key := range eigenface.AvailableResources {
		if !strings.Contains(out, key) {
			t.Errorf("download --list does not mention %s", key)
		}
	}
}

func TestDatabaseModels(t *testing.T) {
	t.Cleanup(func() { databaseURL = "" })

	corpus := t.TempDir()
	writeTestCorpus(t, corpus, 3)
	db := "sqlite://" + filepath.Join(t.TempDir(), "models.db")

	out := execute(t, "", "--db", db, "train", "--data", corpus, "--model", "bioid.json", "--eigenfaces", "")
	if !strings.Contains(out, "Saved model with 3 samples (79x79) to bioid") {
		t.Errorf("Unexpected train output: %s", out)
	}

	query := filepath.Join(corpus, "BioID_0002")
	out = execute(t, "quit\n", "--db", db, "recognize", "--model", "bioid.json", query+".pgm", query+".eye")
	if !strings.Contains(out, "BioID_0002.pgm") {
		t.Errorf("Unexpected recognize output: %s", out)
	}

	out = execute(t, "", "--db", db, "models")
	if !strings.Contains(out, "bioid") || !strings.Contains(out, "(database)") {
		t.Errorf("Unexpected models output: %s", out)
	}
}
