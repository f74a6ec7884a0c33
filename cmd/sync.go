package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/crm"
	"github.com/sells-group/buyer-group-cli/internal/model"
)

var syncDryRun bool

type runGetter interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

var syncCmd = &cobra.Command{
	Use:   "sync <run-id>",
	Short: "Upsert a completed buyer group into Salesforce as contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sync"); err != nil {
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
		if syncDryRun {
			return writeOutput(cmd.OutOrStdout(), "table", "", resp)
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		res, err := crm.NewSyncer(sf, crm.Fields{
			Role:       cfg.Salesforce.RoleField,
			Confidence: cfg.Salesforce.ConfidenceField,
		}).Sync(ctx, resp)
		if err != nil {
			return err
		}

		zap.L().Info("salesforce sync complete",
			zap.String("run_id", args[0]),
			zap.String("account_id", res.AccountID),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", len(res.Failed)),
		)
		if len(res.Failed) > 0 {
			return eris.Errorf("%d contacts failed to sync: %s", len(res.Failed), strings.Join(res.Failed, "; "))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "print the members that would be synced")
	rootCmd.AddCommand(syncCmd)
}

// loadResult returns the response of a completed run.
func loadResult(ctx context.Context, runs runGetter, runID string) (*model.Response, error) {
	run, err := runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Stage != model.StageComplete || run.Result == nil {
		return nil, eris.Errorf("run %s is %s, not complete", runID, run.Stage)
	}
	return run.Result, nil
}
