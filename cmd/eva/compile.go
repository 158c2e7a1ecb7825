package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eva/internal/bytecode"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.eva>",
	Short: "Compile an Eva program and report its constant pool and code size",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().String("snapshot", "", "write a CBOR snapshot of the compiled main Code object to this path")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	src, err := readSource(args[0])
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	m, err := loadMachine(cmd)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	p, err := m.Compile(src)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	fmt.Printf("main: %d constants, %d bytes of code\n", len(p.Main.Constants), len(p.Main.Code))
	fmt.Printf("%d code objects compiled (main included)\n", len(p.AllCode))

	snapPath, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return err
	}
	if snapPath != "" {
		data, err := bytecode.Marshal(p.Main)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		if err := writeFile(snapPath, data); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		fmt.Printf("wrote snapshot to %s\n", snapPath)
	}
	return nil
}
