package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/draftgate/internal/cli"
	"github.com/cloo-solutions/draftgate/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "draftgated",
		Short:        "Draft safety gate and revision daemon",
		Long:         "draftgated scores outbound drafts, revises them within a bounded budget and governs lead memory",
		SilenceUsage: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.JudgeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
