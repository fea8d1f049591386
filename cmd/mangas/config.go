package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/config"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented config file",
	Long:  "Write a commented config file to path (default: ~/.config/mangas-dl/config.toml) unless it exists",
	Args:  maxArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = utils.ExpandHome(args[0])
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".config", "mangas-dl", "config.toml")
		}

		if err := config.WriteTemplate(path); err != nil {
			return err
		}
		printField(cmd.OutOrStdout(), "Config", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
