package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/reportwatch/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of rwctl.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := config.GetBuildInfo()
		if GetOutput() == "json" {
			data, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Println(info.Describe("rwctl"))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
