package main

import (
	"os"

	"github.com/spf13/cobra"

	"eva/internal/config"
	"eva/internal/driver"
)

// loadMachine builds a driver.Machine from the --config directory flag,
// falling back to eva.toml discovery from the current directory (or its
// ancestors), per internal/config.FindAndLoad.
func loadMachine(cmd *cobra.Command) (*driver.Machine, error) {
	dir, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	return driver.New(cfg), nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
