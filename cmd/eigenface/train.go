package main

import (
	"fmt"
	"os"
	"time"

	"github.com/lib-x/eigenface"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// maxMontageFaces is the number of eigenfaces in the preview image, two rows of five
const maxMontageFaces = 10

type trainOptions struct {
	DataDir        string
	ModelPath      string
	Count          int
	EigenFacesPath string
	SkipEyes       bool
}

var trainOpts trainOptions

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train an eigenface model from an annotated face corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd, trainOpts)
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainOpts.DataDir, "data", "d", "", "Corpus directory with .pgm images and .eye annotations")
	trainCmd.Flags().StringVarP(&trainOpts.ModelPath, "model", "m", "models/eigenface.json", "Output model file")
	trainCmd.Flags().IntVarP(&trainOpts.Count, "count", "n", -1, "Maximum number of samples to use (-1 for all)")
	trainCmd.Flags().StringVar(&trainOpts.EigenFacesPath, "eigenfaces", "", "Write a preview of the first eigenfaces to this image")
	trainCmd.Flags().BoolVar(&trainOpts.SkipEyes, "no-eyes", false, "Accept images without an eye annotation (detector must find every face)")

	trainCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, opts trainOptions) error {
	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("loading corpus"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
		}
		bar.Set(done)
	}

	engine, err := newEngine(
		eigenface.WithProgress(progress),
		eigenface.WithEyeRequirement(!opts.SkipEyes),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	ds, err := engine.LoadCorpus(opts.DataDir, opts.Count)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	defer ds.Close()

	if err := cmd.Context().Err(); err != nil {
		return err
	}

	start := time.Now()
	model, err := engine.TrainDataset(ds)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	logger.Info("model trained", "samples", model.Len(), "size", model.Size(), "elapsed", time.Since(start))

	if err := saveModel(cmd, model, opts.ModelPath); err != nil {
		return err
	}

	if opts.EigenFacesPath != "" {
		if err := ensureParentDir(opts.EigenFacesPath); err != nil {
			return err
		}
		if err := model.SaveEigenFaces(opts.EigenFacesPath, maxMontageFaces); err != nil {
			// the model is already saved, a missing preview is not fatal
			logger.Warn("failed to write eigenfaces", "path", opts.EigenFacesPath, "error", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved eigenfaces to %s\n", opts.EigenFacesPath)
		}
	}

	return nil
}

// saveModel writes model to path, or into the --db database under the
// path's base name
func saveModel(cmd *cobra.Command, model *eigenface.TrainedModel, path string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}

	location := path
	if db != nil {
		defer db.Close()
		location = modelName(path)
		if err := db.SaveModel(location, model); err != nil {
			return err
		}
	} else {
		if err := ensureParentDir(path); err != nil {
			return err
		}
		if err := eigenface.SaveModel(model, path); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved model with %d samples (%dx%d) to %s\n",
		model.Len(), model.Size().X, model.Size().Y, location)
	return nil
}
