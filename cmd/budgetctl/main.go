// budgetctl runs the budget analysis stages against a local JSON dataset.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Analyze government budget datasets from the command line",
		Long: `budgetctl analyzes a budget dataset without running the server.

A dataset is a JSON object with revenue, expenditure, inflation and
gdp_growth sections. Every command prints its result as JSON unless a
different format is requested.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(analyzeCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(standardizeCmd())
	root.AddCommand(projectCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
