package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/antflydb/specaf"
)

var statusDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what a store directory holds",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusDir, "dir", "d", "", "Store directory to inspect (required)")
	_ = statusCmd.MarkFlagRequired("dir")
}

func runStatus(cmd *cobra.Command, args []string) error {
	report, err := specaf.Status(cmd.Context(), statusDir)
	if err != nil {
		return err
	}
	fmt.Printf("API:            %s (%s %s)\n", report.Name, report.Title, report.Version)
	fmt.Printf("Ingested:       %s\n", report.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Digest:         %s\n", report.Digest)
	fmt.Printf("Endpoints:      %d\n", report.Counts.Endpoints)
	fmt.Printf("Schemas:        %d\n", report.Counts.Schemas)
	fmt.Printf("Categories:     %d\n", report.Counts.Categories)
	fmt.Printf("Schema version: %d\n", report.SchemaVersion)
	return nil
}
