package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	tipsCrop   string
	tipsSeason string
)

// tipsCmd represents the `agriassist tips` command
var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "Farming tips for a crop and season",
	Long: `Fetch farming tips for a crop and season from the AgriAssist server.

Examples:
  # Tips for the default crop (maize) in the current season
  agriassist tips

  # Tips for beans during the rainy season
  agriassist tips --crop beans --season rainy

  # Tips in Swahili
  agriassist tips --crop tomatoes --language sw`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := newDefaultContextFromGlobals()

		tips, err := fetchFarmingTips(tipsCrop, tipsSeason, ctx)
		if err != nil {
			OutputError("%v", err)
			os.Exit(1)
		}
		fmt.Println(renderTips(tips))
	},
}

func init() {
	tipsCmd.Flags().StringVar(&tipsCrop, "crop", "", "Crop to get tips for (default: maize)")
	tipsCmd.Flags().StringVar(&tipsSeason, "season", "", "Season: current, rainy, dry, planting or harvest (default: current)")
	rootCmd.AddCommand(tipsCmd)
}
