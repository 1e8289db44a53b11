package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fzgo/fz"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Args:  cobra.NoArgs,
	Short: "Run a model's output pipelines against a finished case directory (fzo)",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().String("case", "", "path to the case directory")
	extractCmd.Flags().String("model", "", "path to a model YAML file")
	extractCmd.MarkFlagRequired("case")
	extractCmd.MarkFlagRequired("model")
}

func runExtract(cmd *cobra.Command, args []string) error {
	caseDir, _ := cmd.Flags().GetString("case")
	modelPath, _ := cmd.Flags().GetString("model")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	outputs, err := fz.ExtractOutputs(caseDir, m, cfg.ShellPath)
	if err != nil {
		fmt.Printf("warning: %v\n", err)
	}

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s = %v\n", name, outputs[name])
	}
	return nil
}
