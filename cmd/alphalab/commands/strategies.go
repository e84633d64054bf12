package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/internal/strategy"
)

// strategiesCmd lists the registered strategies
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "등록된 전략 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Registered strategies:")
		PrintList(strategy.Default().Names())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
