package main

import (
	"github.com/spf13/cobra"

	"github.com/forgemaster-mtg/mtglibrary/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(version.String())
	},
}
