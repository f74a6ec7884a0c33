package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/buyer-group-cli/internal/export"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/store"
)

var (
	runsStage   string
	runsCompany string
	runsLimit   int
	runsFormat  string
	runsOutput  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted pipeline runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Stage:       model.Stage(runsStage),
			CompanyName: runsCompany,
			Limit:       runsLimit,
		})
		if err != nil {
			return err
		}
		return export.WriteRuns(cmd.OutOrStdout(), runs)
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its stage records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return export.WriteRun(cmd.OutOrStdout(), run)
	},
}

var runsResultCmd = &cobra.Command{
	Use:   "result <run-id>",
	Short: "Print the buyer group a completed run produced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resp, err := loadResult(ctx, st, args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), runsFormat, runsOutput, resp)
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStage, "stage", "", "filter by stage (e.g. complete, failed)")
	runsListCmd.Flags().StringVar(&runsCompany, "company", "", "filter by company name")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsResultCmd.Flags().StringVar(&runsFormat, "format", "json", "output format: json, csv, xlsx or table")
	runsResultCmd.Flags().StringVar(&runsOutput, "output", "", "write output to file instead of stdout")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsResultCmd)
	rootCmd.AddCommand(runsCmd)
}
