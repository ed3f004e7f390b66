package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var analyzeLocation string

// analyzeCmd represents the `agriassist analyze` command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze a crop photo for diseases",
	Long: `Upload a crop photo to the AgriAssist server for disease analysis.

Examples:
  # Analyze with the default location
  agriassist analyze ./maize-leaf.jpg

  # Analyze with an explicit location for weather context
  agriassist analyze ./maize-leaf.jpg --location "Eldoret"

  # Get the analysis in Swahili
  agriassist analyze ./maize-leaf.jpg --language sw`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		imagePath := args[0]

		info, err := os.Stat(imagePath)
		if err != nil {
			OutputError("Cannot read '%s': %v", imagePath, err)
			os.Exit(1)
		}
		mime, ok := detectImageType(imagePath)
		if !ok {
			OutputError("'%s' does not look like an image file", imagePath)
			os.Exit(1)
		}

		ctx := newDefaultContextFromGlobals()
		OutputProgress("Analyzing %s (%s, %s)...", imagePath, mime, formatBytes(info.Size()))

		analysis, err := analyzeCrop(imagePath, analyzeLocation, ctx)
		if err != nil {
			OutputError("%v", err)
			os.Exit(1)
		}

		fmt.Println(renderCropAnalysis(analysis))
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeLocation, "location", "l", "", "Location for weather context (default: Kenya)")
	rootCmd.AddCommand(analyzeCmd)
}
