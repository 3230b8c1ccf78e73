package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/martin-sucha/gozip"
)

var extractPassword string

func buildExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <archive.zip> [dir]",
		Short: "Extract an archive's entries to a directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runExtract,
	}
	cmd.Flags().StringVar(&extractPassword, "password", "", "Password for encrypted entries")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}

	a, err := gozip.Open(args[0], gozip.SessionOptions{})
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer a.Close()

	var pwd []byte
	if extractPassword != "" {
		pwd = []byte(extractPassword)
	}

	slog.Debug("extracting archive", "path", args[0], "dir", dir, "entries", len(a.Names()))

	if err := a.ExtractAll(dir, gozip.ExtractOptions{Password: pwd}); err != nil {
		return fmt.Errorf("extracting %s: %w", args[0], err)
	}
	return nil
}
