package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatInputFile string

// chatFallbackMessage is appended to the transcript whenever a chat request
// fails for any reason. The chat flow never surfaces raw error details to
// the user; those go to the debug log.
const chatFallbackMessage = "Sorry, I couldn't reach the assistant right now. Please try again in a moment."

// chatCmd represents the `agriassist chat` command
var chatCmd = &cobra.Command{
	Use:   "chat [\"message\"]",
	Short: "Chat with the farming assistant",
	Long: `Chat with the AgriAssist farming assistant.

With an inline message (or --file), sends a single question and prints the
reply. Without input, starts an interactive session.

Examples:
  # One-off question
  agriassist chat "When should I plant beans in the highlands?"

  # Question from a file
  agriassist chat -f ./question.txt

  # Interactive session
  agriassist chat

  # Ask in Swahili
  agriassist chat --language sw "Mbegu gani ni bora kwa ukame?"`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var input string
		if chatInputFile != "" {
			data, err := os.ReadFile(chatInputFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading file '%s': %v\n", chatInputFile, err)
				os.Exit(1)
			}
			input = string(data)
		} else if len(args) >= 1 {
			input = args[0]
		}

		// Start an interactive session if no input is provided. A blank
		// message that was explicitly given is a no-op, not a failure.
		if strings.TrimSpace(input) == "" {
			if chatInputFile != "" || len(args) >= 1 {
				return
			}
			runAssistTUI()
			return
		}

		ctx := newDefaultContextFromGlobals()
		reply, err := sendChatRequest(input, ctx)
		if err != nil {
			logDebug(fmt.Sprintf("chat request failed: %v", err))
			fmt.Println(chatFallbackMessage)
			os.Exit(1)
		}
		fmt.Println(formatAnalysisText(reply))
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatInputFile, "file", "f", "", "path to file containing the message")
	rootCmd.AddCommand(chatCmd)
}
