// Package commands implements the gateway binary's CLI commands: start
// the supervisor, initialize a configuration file, and inspect
// configuration. The CLI itself is ambient wiring around internal/gateway,
// not part of the core contract (spec.md §6) — it never exposes a
// control-plane RPC surface, it only starts/stops one process.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/VacuolePaoo/gatewaygui/cmd/gateway/commands/config"
)

var (
	// Version information, injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Peer-to-peer discovery and file-transfer gateway",
	Long: `gateway is a peer-to-peer node that discovers other gateways on the
local network, advertises locally mounted directories, answers keyword
searches from peers, and transfers files with integrity and transport-level
compression.

Every node is both server and client: there is no central coordinator.

Use "gateway [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/gateway/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path bound to the --config flag.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error message to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
