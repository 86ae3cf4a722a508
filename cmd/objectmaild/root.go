package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "objectmaild",
	Short: "an S3-compatible object store backed by an IMAP mailbox",
	Long: `objectmaild serves an S3-compatible HTTP API whose object bytes are
physically stored as content-addressed attachments on draft messages in an
IMAP account, deduplicated and reference-counted in a relational metadata
store.`,
	Run: nil,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"print out more debug information")
}

// Execute runs the root command, exiting the process on error the way
// cobra.Command.Execute expects its caller to.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
