package main

import (
	"github.com/lib-x/eigenface"
	"github.com/spf13/cobra"
)

type downloadOptions struct {
	Dir   string
	Proxy string
	List  bool
}

var downloadOpts downloadOptions

var downloadCmd = &cobra.Command{
	Use:   "download [KEY...]",
	Short: "Download face detector cascades",
	Long:  "Download the given detector cascades, or the cascade of every detector when no key is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downloadOpts.List {
			eigenface.ListAvailableResources(cmd.OutOrStdout())
			return nil
		}

		d := eigenface.NewResourceDownloader(downloadOpts.Dir)
		d.ProxyURL = downloadOpts.Proxy
		d.Out = cmd.OutOrStdout()

		if len(args) == 0 {
			return d.DownloadRequired()
		}
		for _, key := range args {
			if _, err := d.Download(key); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadOpts.Dir, "dir", defaultResourceDir, "Output directory")
	downloadCmd.Flags().StringVar(&downloadOpts.Proxy, "proxy", "", "Proxy URL, e.g. socks5://127.0.0.1:10808")
	downloadCmd.Flags().BoolVar(&downloadOpts.List, "list", false, "List available cascades and exit")

	rootCmd.AddCommand(downloadCmd)
}
