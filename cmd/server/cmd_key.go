package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xperious/result-storage/internal/resultstorage"
)

var keyCmd = &cobra.Command{
	Use:   "key <path>...",
	Short: "Print the object key each image path is stored under",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, resultstorage.NormalizePath(p))
		}
		return nil
	},
}
