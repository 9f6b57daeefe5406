// Package config implements the "gateway config" command group: validating
// and inspecting a loaded configuration file.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the "gateway config" parent command.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate gateway configuration",
}

func init() {
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(showCmd)
}
