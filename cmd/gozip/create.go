package main

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/martin-sucha/gozip"
)

var (
	createMethod string
	createLevel  int
)

func buildCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <archive.zip> <path>...",
		Short: "Create an archive from files or directories",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runCreate,
	}
	cmd.Flags().StringVar(&createMethod, "method", "deflate", "Compression method: store, deflate, bzip2, lzma")
	cmd.Flags().IntVar(&createLevel, "level", -1, "Compression level (method-dependent, -1 for default)")
	return cmd
}

func compressionMethod(name string) (uint16, error) {
	switch name {
	case "store":
		return gozip.Store, nil
	case "deflate":
		return gozip.Deflate, nil
	case "bzip2":
		return gozip.Bzip2, nil
	case "lzma":
		return gozip.LZMA, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	method, err := compressionMethod(createMethod)
	if err != nil {
		return err
	}

	a, err := gozip.CreateTruncate(args[0], gozip.SessionOptions{})
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}

	for _, root := range args[1:] {
		if err := addPath(a, root, method); err != nil {
			a.Close()
			return err
		}
	}

	return a.Close()
}

func addPath(a *gozip.Archive, root string, method uint16) error {
	base := filepath.Dir(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		arcname := filepath.ToSlash(rel)
		return a.Write(path, arcname, gozip.WriteOptions{Method: method, Level: createLevel, Size: -1})
	})
}
