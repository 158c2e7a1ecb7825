package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive read-eval-print loop",
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	m, err := loadMachine(cmd)
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}

	fmt.Println("Eva REPL (type :quit to exit)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ":quit" || line == ":q" {
			break
		}

		result, err := m.Exec(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.String())
	}

	fmt.Println()
	return nil
}
