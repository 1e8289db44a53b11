package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fzgo/fz"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Args:  cobra.NoArgs,
	Short: "List every variable token found in a template tree (fzi)",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().String("template", "", "path to the template tree")
	discoverCmd.Flags().String("model", "", "path to a model YAML file (default: Java-Funz-compatible defaults)")
	discoverCmd.MarkFlagRequired("template")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	templatePath, _ := cmd.Flags().GetString("template")
	modelPath, _ := cmd.Flags().GetString("model")

	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	vars, err := fz.DiscoverVariables(templatePath, m)
	if err != nil {
		return fmt.Errorf("discover variables: %w", err)
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if def := vars[name]; def != nil {
			fmt.Printf("%s = %s\n", name, def.String())
		} else {
			fmt.Printf("%s\n", name)
		}
	}
	return nil
}
