package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/martin-sucha/gozip"
)

func buildListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive.zip>",
		Short: "List archive entries",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := gozip.Open(args[0], gozip.SessionOptions{})
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer a.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "SIZE\tCOMPRESSED\tMODIFIED\tNAME")
	for _, name := range a.Names() {
		fh, err := a.Info(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n",
			fh.UncompressedSize64, fh.CompressedSize64,
			fh.Modified.Format("2006-01-02 15:04"), fh.Name)
	}
	return nil
}
