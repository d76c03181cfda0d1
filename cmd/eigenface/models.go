package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lib-x/eigenface"
	"github.com/spf13/cobra"
)

var modelsDir string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the trained models stored in a directory or database",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			storage  eigenface.ModelStorage
			location func(name string) string
			source   = modelsDir
		)

		db, err := openDatabase()
		if err != nil {
			return err
		}
		if db != nil {
			storage = db
			source = "database"
			location = func(string) string { return "(database)" }
		} else {
			files, err := eigenface.NewFileStorage(modelsDir)
			if err != nil {
				return err
			}
			storage = files
			location = files.ModelPath
		}
		defer storage.Close()

		summaries, err := eigenface.SummarizeModels(storage)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(summaries) == 0 {
			fmt.Fprintf(out, "No models found in %s.\n", source)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tSAMPLES\tSIZE\tPATH")
		fmt.Fprintln(w, "----\t-------\t----\t----")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%dx%d\t%s\n", s.Name, s.Samples, s.Size.X, s.Size.Y, location(s.Name))
		}
		return w.Flush()
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsDir, "dir", defaultResourceDir, "Model directory")
	rootCmd.AddCommand(modelsCmd)
}
