package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file.eva>",
	Short: "Compile and execute an Eva program, printing its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	src, err := readSource(args[0])
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	m, err := loadMachine(cmd)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	result, err := m.Exec(src)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Println(result.String())
	return nil
}
