package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the availd application
var rootCmd = &cobra.Command{
	Use:   "availd",
	Short: "Answers SMS availability queries from calendar and presence",
	Long: `availd is a small service that answers "are you available?" text messages.

It receives inbound SMS via a Twilio webhook, checks the sender against an
allow list, looks at the next minute of a Google Calendar together with an
at-home flag, and replies "Available" or "Busy" with an outbound SMS.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "availd version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
