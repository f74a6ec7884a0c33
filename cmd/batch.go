package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/buyer-group-cli/internal/batch"
	"github.com/sells-group/buyer-group-cli/internal/model"
)

var (
	batchInput       string
	batchConcurrency int
	batchProduct     string
	batchCategory    string
	batchRoles       []string
	batchFormat      string
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Identify buyer groups for every company in a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchInput == "" {
			return eris.New("--input is required")
		}
		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrentCompanies = batchConcurrency
		}

		reqs, err := batch.ReadFile(batchInput, model.SellerProfile{
			ProductName:      batchProduct,
			SolutionCategory: batchCategory,
			TargetRoles:      batchRoles,
		})
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			return eris.Errorf("no companies found in %s", batchInput)
		}

		ctx := cmd.Context()
		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes, sum := batch.Run(ctx, env.Pipeline, reqs, cfg.Batch.MaxConcurrentCompanies)
		printSummary(cmd.ErrOrStderr(), sum)

		if err := writeOutput(cmd.OutOrStdout(), batchFormat, batchOutput, batch.Responses(outcomes)...); err != nil {
			return err
		}
		if sum.Failed == sum.Total {
			return eris.Errorf("all %d companies failed", sum.Total)
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchInput, "input", "", "CSV or XLSX file of companies (required)")
	f.IntVar(&batchConcurrency, "concurrency", 0, "companies processed in parallel (0 uses config)")
	f.StringVar(&batchProduct, "product", "", "default product when a row has none")
	f.StringVar(&batchCategory, "category", "", "default solution category")
	f.StringSliceVar(&batchRoles, "roles", nil, "default target roles (comma-separated)")
	f.StringVar(&batchFormat, "format", "csv", "output format: json, csv, xlsx or table")
	f.StringVar(&batchOutput, "output", "", "write output to file instead of stdout")
	rootCmd.AddCommand(batchCmd)
}

func printSummary(w io.Writer, sum batch.Summary) {
	fmt.Fprintf(w, "Batch: %d companies in %s\n", sum.Total, sum.Duration.Round(1e6))
	fmt.Fprintf(w, "  succeeded:     %d\n", sum.Succeeded)
	fmt.Fprintf(w, "  cached:        %d\n", sum.Cached)
	fmt.Fprintf(w, "  no qualified:  %d\n", sum.NoQualified)
	fmt.Fprintf(w, "  failed:        %d\n", sum.Failed)

	codes := make([]string, 0, len(sum.ByCode))
	for c := range sum.ByCode {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "    %-24s %d\n", c, sum.ByCode[model.ErrorCode(c)])
	}
}
