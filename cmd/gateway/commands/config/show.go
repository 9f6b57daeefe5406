package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/VacuolePaoo/gatewaygui/internal/cli/output"
	"github.com/VacuolePaoo/gatewaygui/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Load a configuration file, apply defaults, and print the result.

Examples:
  gateway config show
  gateway config show --output json
  gateway config show --output yaml`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "Output format: table, json, yaml")
}

func runShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, cfg)
	default:
		return printConfigTables(cfg)
	}
}

func printConfigTables(cfg *config.Config) error {
	identity := output.NewTableData("FIELD", "VALUE")
	identity.AddRow("name", cfg.Identity.Name)
	identity.AddRow("quic_bind_addr", cfg.Identity.QUICBindAddr)
	identity.AddRow("udp_bind_addr", cfg.Identity.UDPBindAddr)
	identity.AddRow("tls.verify_mode", cfg.TLS.VerifyMode)
	identity.AddRow("cache.dir", cfg.Cache.Dir)
	identity.AddRow("cache.max_bytes", strconv.FormatUint(uint64(cfg.Cache.MaxBytes), 10))
	fmt.Println("Identity & transport:")
	if err := output.PrintTable(os.Stdout, identity); err != nil {
		return err
	}

	if len(cfg.Mounts) > 0 {
		mounts := output.NewTableData("NAME", "ROOT", "READ ONLY")
		for _, m := range cfg.Mounts {
			mounts.AddRow(m.Name, m.Root, strconv.FormatBool(m.ReadOnly))
		}
		fmt.Println("\nMounts:")
		if err := output.PrintTable(os.Stdout, mounts); err != nil {
			return err
		}
	}

	if len(cfg.AccessRules) > 0 {
		rules := output.NewTableData("CIDR", "ACTION", "NOTE")
		for _, r := range cfg.AccessRules {
			rules.AddRow(r.CIDR, r.Action, r.Note)
		}
		fmt.Println("\nAccess rules:")
		if err := output.PrintTable(os.Stdout, rules); err != nil {
			return err
		}
	}

	return nil
}
