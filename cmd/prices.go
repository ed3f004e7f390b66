package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// pricesCmd represents the `agriassist prices` command
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Current market prices for common crops",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := newDefaultContextFromGlobals()

		prices, err := fetchMarketPrices(ctx)
		if err != nil {
			OutputError("%v", err)
			os.Exit(1)
		}
		fmt.Println(renderMarketPrices(prices))
	},
}

func init() {
	rootCmd.AddCommand(pricesCmd)
}
