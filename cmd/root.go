package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/attachfinder/internal/config"
)

// Persistent flag names.
const (
	flagConfig  = "config"
	flagDebug   = "debug"
	flagEnvFile = "env-file"
)

// rootCmd represents the base command for the attachfinder application
var rootCmd = &cobra.Command{
	Use:   "attachfinder",
	Short: "Finds Gmail messages with attachments",
	Long: `attachfinder searches a Gmail account for messages that carry attachments
and returns paginated results with sender, date and attachment metadata.

It can run as:
  - A REST API and MCP server (serve)
  - A command line search tool (search)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, err := cmd.Flags().GetStringSlice(flagEnvFile)
		if err != nil {
			return err
		}
		return config.LoadDotEnv(envFiles...)
	},
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
	rootCmd.SetVersionTemplate(`{{printf "attachfinder version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(flagConfig, "", "Config file (default: $XDG_CONFIG_HOME/attachfinder/config.yaml)")
	rootCmd.PersistentFlags().Bool(flagDebug, false, "Enable debug logging")
	rootCmd.PersistentFlags().StringSlice(flagEnvFile, []string{".env"}, "Dotenv files loaded before the configuration")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
