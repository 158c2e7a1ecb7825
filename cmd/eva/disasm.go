package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"eva/internal/bytecode"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.eva>",
	Short: "Print the disassembly of a compiled Eva program",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	disasmCmd.Flags().String("dump", "", "also write a CBOR snapshot of the compiled main Code object to this path")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	src, err := readSource(args[0])
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}

	m, err := loadMachine(cmd)
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}

	p, err := m.Compile(src)
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}

	colorMode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	printDisassembly(p.Disassemble(), wantColor(colorMode))

	dumpPath, err := cmd.Flags().GetString("dump")
	if err != nil {
		return err
	}
	if dumpPath != "" {
		data, err := bytecode.Marshal(p.Main)
		if err != nil {
			return fmt.Errorf("disasm: %w", err)
		}
		if err := writeFile(dumpPath, data); err != nil {
			return fmt.Errorf("disasm: %w", err)
		}
		fmt.Printf("wrote snapshot to %s\n", dumpPath)
	}
	return nil
}

// wantColor resolves the --color flag (auto|on|off) against whether
// stdout is a terminal, mirroring the teacher's isTerminal check.
func wantColor(mode string) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// printDisassembly colorizes header lines (prefixed with "; ===") in
// bold cyan and the other comment lines (prefixed with ";") in a muted
// color, and leaves instruction lines plain, so a
// terminal reader can visually separate metadata from executable code.
func printDisassembly(listing string, useColor bool) {
	comment := color.New(color.FgHiBlack)
	header := color.New(color.FgCyan, color.Bold)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for _, line := range strings.Split(listing, "\n") {
		switch {
		case !useColor:
			fmt.Fprintln(w, line)
		case strings.HasPrefix(line, "; ==="):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, ";"):
			comment.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
