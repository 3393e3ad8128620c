package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/audioduck/internal/config"
)

// configCmd is the config command group.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage audioduck configuration",
	Long: `Manage the audioduck configuration file.

Use 'audioduck config path' to print the config file location.
Use 'audioduck config show' to print the effective configuration.
Use 'audioduck config init' to write a default config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun(cmd, args)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalOpts.configPath
		if path == "" {
			var err error
			path, err = config.ConfigPath()
			if err != nil {
				return err
			}
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the effective configuration as TOML: file values merged over defaults.`,
	RunE:  configShowRun,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Write a config file with default values. Refuses to overwrite an existing file.`,
	RunE:  configInitRun,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}

func configShowRun(cmd *cobra.Command, args []string) error {
	data, err := toml.Marshal(getConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}

func configInitRun(cmd *cobra.Command, args []string) error {
	path := globalOpts.configPath
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
