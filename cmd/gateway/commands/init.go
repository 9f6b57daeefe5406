package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/VacuolePaoo/gatewaygui/internal/cli/prompt"
	"github.com/VacuolePaoo/gatewaygui/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a gateway configuration file at $XDG_CONFIG_HOME/gateway/config.yaml
(or the path given by --config), filled in with the same defaults "start"
would otherwise apply implicitly.

Examples:
  # Initialize with default location
  gateway init

  # Initialize with custom path
  gateway init --config /etc/gateway/config.yaml

  # Walk through the identity and bind-address prompts interactively
  gateway init --interactive

  # Force overwrite an existing config file
  gateway init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for identity and bind-address values")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	cfg := config.GetDefaultConfig()

	if initInteractive {
		if err := fillInteractively(cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("init aborted")
			}
			return err
		}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add mounts and access rules")
	fmt.Printf("  2. Start the gateway with: gateway start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A self-signed mTLS identity bundle is generated on first start if none")
	fmt.Println("  exists yet under tls.bundle_dir.")

	return nil
}

func fillInteractively(cfg *config.Config) error {
	name, err := prompt.Input("Gateway name", cfg.Identity.Name)
	if err != nil {
		return err
	}
	cfg.Identity.Name = name

	quicAddr, err := prompt.Input("QUIC bind address", cfg.Identity.QUICBindAddr)
	if err != nil {
		return err
	}
	cfg.Identity.QUICBindAddr = quicAddr

	udpAddr, err := prompt.Input("UDP bind address", cfg.Identity.UDPBindAddr)
	if err != nil {
		return err
	}
	cfg.Identity.UDPBindAddr = udpAddr

	mode, err := prompt.SelectString("TLS verification mode", []string{"none", "peer", "mutual", "strict"})
	if err != nil {
		return err
	}
	cfg.TLS.VerifyMode = mode

	addMount, err := prompt.Confirm("Mount a directory now", false)
	if err != nil {
		return err
	}
	if addMount {
		root, err := prompt.InputRequired("Directory to mount")
		if err != nil {
			return err
		}
		display, err := prompt.Input("Display name", root)
		if err != nil {
			return err
		}
		readOnly, err := prompt.Confirm("Mount read-only", true)
		if err != nil {
			return err
		}
		cfg.Mounts = append(cfg.Mounts, config.MountConfig{
			Root:        root,
			Name:        display,
			DisplayName: display,
			ReadOnly:    readOnly,
		})
	}

	return nil
}
