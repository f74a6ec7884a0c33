package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/config"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "buyer-group-cli",
	Short: "Buyer-group identification for B2B sales",
	Long: `Identifies the people at a target company who decide, influence or block a purchase.

  find     resolve one company and print its buyer group
  batch    run many companies from a CSV or XLSX file
  serve    expose the pipeline over HTTP
  runs     inspect stored runs and their results
  cache    invalidate or purge cached buyer groups
  sync     upsert a completed run into Salesforce as contacts

Configuration is read from ./config.yaml and BUYERGROUP_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
