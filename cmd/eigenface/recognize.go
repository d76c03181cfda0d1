package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lib-x/eigenface"
	"github.com/spf13/cobra"
)

type recognizeOptions struct {
	ModelPath     string
	MaxDistance   float64
	ReferencePath string
}

var recognizeOpts recognizeOptions

var recognizeCmd = &cobra.Command{
	Use:   "recognize [IMAGE [EYEFILE]]",
	Short: "Find the closest training sample for query images",
	Long: `Recognize the optional IMAGE, then read further queries from stdin,
one "IMAGE [EYEFILE]" per line, until "quit" or end of input.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecognize(cmd, args, recognizeOpts)
	},
}

func init() {
	recognizeCmd.Flags().StringVarP(&recognizeOpts.ModelPath, "model", "m", "models/eigenface.json", "Trained model file")
	recognizeCmd.Flags().Float64Var(&recognizeOpts.MaxDistance, "max-distance", math.Inf(1), "Mark matches farther than this as rejected")
	recognizeCmd.Flags().StringVar(&recognizeOpts.ReferencePath, "save-reference", "", "Write the closest training image of each query to this file")

	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string, opts recognizeOptions) error {
	model, err := loadModel(opts.ModelPath)
	if err != nil {
		return err
	}
	logger.Info("model loaded", "path", opts.ModelPath, "samples", model.Len(), "size", model.Size())

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	recognizer, err := engine.NewRecognizer(model, eigenface.WithMaxDistance(float32(opts.MaxDistance)))
	if err != nil {
		return err
	}
	defer recognizer.Close()

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		recognizeQuery(out, recognizer, args, opts)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			return nil
		}
		recognizeQuery(out, recognizer, fields, opts)
	}
	return scanner.Err()
}

// recognizeQuery recognizes one "IMAGE [EYEFILE]" query. Failures are
// logged, they never end the session.
func recognizeQuery(out io.Writer, r *eigenface.Recognizer, fields []string, opts recognizeOptions) {
	imagePath := fields[0]

	eyes := eigenface.InvalidEyePosition
	if len(fields) > 1 {
		var err error
		if eyes, err = eigenface.LoadEyePosition(fields[1]); err != nil {
			logger.Warn("ignoring eye annotation", "path", fields[1], "error", err)
			eyes = eigenface.InvalidEyePosition
		}
	}

	img, err := eigenface.LoadImage(imagePath)
	if err != nil {
		logger.Error("failed to load query", "path", imagePath, "error", err)
		return
	}
	defer img.Close()

	match, err := r.Recognize(img, eyes)
	if err != nil {
		if errors.Is(err, eigenface.ErrNoFaceRegion) {
			logger.Error("no face found, pass an eye annotation", "path", imagePath)
			return
		}
		logger.Error("recognition failed", "path", imagePath, "error", err)
		return
	}

	status := "match"
	if !match.Accepted {
		status = "rejected"
	}
	fmt.Fprintf(out, "%s\t%s\t%.4f\t%s\n", imagePath, match.Label, match.Distance, status)
	logger.Debug("query recognized", "path", imagePath, "index", match.Index, "region", match.Region.Source, "rect", match.Region.Rect)

	if opts.ReferencePath != "" && match.Reference != nil {
		if err := imaging.Save(match.Reference, opts.ReferencePath); err != nil {
			logger.Warn("failed to save reference image", "path", opts.ReferencePath, "error", err)
		}
	}
}

// loadModel reads the model file at path, or the model stored under the
// path's base name when --db is set
func loadModel(path string) (*eigenface.TrainedModel, error) {
	db, err := openDatabase()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return eigenface.LoadModel(path)
	}
	defer db.Close()
	return db.LoadModel(modelName(path))
}
