// Command gozip is a thin CLI over the gozip archive session: list, create
// and extract ZIP archives from the shell.
package main

import "os"

func main() {
	rootCmd := buildRootCommand()
	rootCmd.AddCommand(buildListCommand())
	rootCmd.AddCommand(buildCreateCommand())
	rootCmd.AddCommand(buildExtractCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
