package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "fz",
	Short: "Parametric simulation orchestrator",
	Long: `fz turns a template tree with embedded variables and formulas into one
case directory per parameter combination, runs each case through a chain of
calculator backends (local shell, SSH, cache, UDP-discovered daemons), and
assembles the extracted outputs into a result table.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: compiled defaults + FZ_* env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(iterateCmd)
	rootCmd.AddCommand(configCmd)
}

// Commands are defined in separate files:
// - discoverCmd (fzi) in discover.go
// - compileCmd (fzc) in compile.go
// - extractCmd (fzo) in extract.go
// - runCmd (fzr) in run.go
// - iterateCmd (fzd) in iterate.go
// - configCmd in config.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
