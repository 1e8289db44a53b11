package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fzgo/fz"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Args:  cobra.NoArgs,
	Short: "Expand a template tree into one case directory per combination (fzc)",
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().String("template", "", "path to the template tree")
	compileCmd.Flags().String("model", "", "path to a model YAML file")
	compileCmd.Flags().String("values", "", "path to a variables/design YAML file")
	compileCmd.Flags().StringArray("set", []string{}, "override a variable's value list (e.g. --set x=1,2,3)")
	compileCmd.Flags().String("out", "", "output directory for compiled cases")
	compileCmd.Flags().Bool("dry-run", false, "compile cases and print the case suffix list without dispatching")
	compileCmd.MarkFlagRequired("template")
	compileCmd.MarkFlagRequired("values")
	compileCmd.MarkFlagRequired("out")
}

func runCompile(cmd *cobra.Command, args []string) error {
	templatePath, _ := cmd.Flags().GetString("template")
	modelPath, _ := cmd.Flags().GetString("model")
	valuesPath, _ := cmd.Flags().GetString("values")
	outDir, _ := cmd.Flags().GetString("out")
	setFlags, _ := cmd.Flags().GetStringArray("set")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}
	values, groupVars, rows, rowOrder, err := loadValues(valuesPath)
	if err != nil {
		return err
	}
	if len(setFlags) > 0 {
		applyValueOverrides(values, parseSetFlags(setFlags))
	}

	compiled, err := fz.CompileCases(templatePath, values, m, outDir, fz.CompileOptions{
		GroupVariables: groupVars,
		Rows:           rows,
		RowOrder:       rowOrder,
	})
	if err != nil {
		return fmt.Errorf("compile cases: %w", err)
	}

	fmt.Printf("compiled %d case(s) under %s\n", len(compiled), outDir)
	if dryRun {
		for _, c := range compiled {
			suffix := c.Case.Suffix()
			if suffix == "" {
				suffix = "(no variables)"
			}
			fmt.Printf("  %s -> %s\n", suffix, c.Dir)
		}
	}
	return nil
}
