package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/antflydb/specaf"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an OpenAPI 3.x specification",
	Long: `Run full OpenAPI validation on a specification file without
ingesting it. YAML files are converted to JSON first.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading specification: %w", err)
	}
	converted, err := specaf.ToJSON(data)
	if err != nil {
		return err
	}
	if err := specaf.Validate(cmd.Context(), converted); err != nil {
		return err
	}
	fmt.Printf("%s is a valid OpenAPI specification\n", args[0])
	return nil
}
