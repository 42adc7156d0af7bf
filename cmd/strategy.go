package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltq/stationd/core/station"
)

var strategyCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available scheduling strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range station.Strategies() {
			fmt.Println(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
}
