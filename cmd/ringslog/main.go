// Ringslog runs the RingsLog book-review blog.
//
// Usage:
//
//	ringslog serve [--config ringslog.yaml]
//	ringslog lookup <isbn>
//	ringslog config
//	ringslog version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eringen/ringslog"
)

// version is set at build time via ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ringslog",
	Short: "RingsLog book-review blog",
	Long: `RingsLog is a small blog for book reviews. Reviews are started from an
ISBN: the title and author are filled in from the book catalog, a cover
image can be attached, and the review is stored through the posts API.

Configuration is read from an optional YAML file and RINGSLOG_* environment
variables, e.g. RINGSLOG_SESSION_SECRET.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, lookupCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Print the configuration after defaults, the config file and environment variables are applied. Secrets are omitted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ringslog.LoadConfig(configPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ringslog version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ringslog %s\n", version)
	},
}
