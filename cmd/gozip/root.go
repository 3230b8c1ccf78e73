package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var verbose bool

func buildRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gozip",
		Version: version,
		Short:   "Read and write ZIP archives",
		Long: `gozip inspects, creates, and extracts ZIP archives, including ZIP64,
ZipCrypto and WinZip AES encrypted entries, and the deflate/bzip2/lzma
compression methods.

Commands:
  list     List archive entries
  create   Create an archive from files or directories
  extract  Extract an archive's entries to a directory`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}
