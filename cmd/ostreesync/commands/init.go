package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample ostreesync configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/ostreesync/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  ostreesync init

  # Initialize with custom path
  ostreesync init --config /etc/ostreesync/config.yaml

  # Force overwrite an existing config file
  ostreesync init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = repoconfig.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := repoconfig.DefaultConfig()
	if err := repoconfig.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add a remote:  ostreesync remote add origin https://example.com/repo")
	fmt.Println("  2. Pull it:       ostreesync pull origin stable")

	return nil
}
