package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h1bexplorer/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "h1bctl %s\n", version.GetFullVersionInfo())
		},
	}
}
