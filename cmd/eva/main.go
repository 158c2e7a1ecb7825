// Command eva is the compiler/VM driver: run, compile, disasm, and repl
// subcommands over the internal/driver.Machine façade.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eva",
	Short: "Eva language compiler and bytecode VM",
	Long:  `Eva compiles a small Lisp dialect to bytecode and runs it on a stack VM.`,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(replCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to a directory containing eva.toml")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
