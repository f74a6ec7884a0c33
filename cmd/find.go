package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

var (
	findCompany        string
	findDomain         string
	findProduct        string
	findCategory       string
	findIndustry       string
	findRoles          []string
	findMaxSize        int
	findMinConfidence  float64
	findRefresh        bool
	findSkipValidation bool
	findFormat         string
	findOutput         string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Identify the buyer group for one company",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := findRequest()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initPipeline(ctx, "find")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return err
		}

		zap.L().Info("buyer group complete",
			zap.String("run_id", resp.RunID),
			zap.String("company", resp.Company.Name),
			zap.Int("members", memberCount(resp)),
			zap.Bool("cached", resp.Cached),
		)
		return writeOutput(cmd.OutOrStdout(), findFormat, findOutput, resp)
	},
}

func init() {
	f := findCmd.Flags()
	f.StringVar(&findCompany, "company", "", "target company name (required)")
	f.StringVar(&findDomain, "domain", "", "company domain hint")
	f.StringVar(&findProduct, "product", "", "product being sold")
	f.StringVar(&findCategory, "category", "", "solution category")
	f.StringVar(&findIndustry, "industry", "", "seller industry")
	f.StringSliceVar(&findRoles, "roles", nil, "target roles (comma-separated)")
	f.IntVar(&findMaxSize, "max-size", 0, "maximum buyer group size (0 uses config)")
	f.Float64Var(&findMinConfidence, "min-confidence", 0, "minimum member confidence (0 uses config)")
	f.BoolVar(&findRefresh, "refresh", false, "bypass the result cache")
	f.BoolVar(&findSkipValidation, "skip-validation", false, "skip contact validation")
	f.StringVar(&findFormat, "format", "table", "output format: json, csv, xlsx or table")
	f.StringVar(&findOutput, "output", "", "write output to file instead of stdout")
	rootCmd.AddCommand(findCmd)
}

func findRequest() (model.Request, error) {
	if strings.TrimSpace(findCompany) == "" {
		return model.Request{}, eris.New("--company is required")
	}
	req := model.Request{
		CompanyName: findCompany,
		Domain:      findDomain,
		SellerProfile: model.SellerProfile{
			ProductName:      findProduct,
			SolutionCategory: findCategory,
			Industry:         findIndustry,
			TargetRoles:      findRoles,
		},
		Options: model.Options{
			MaxGroupSize:  findMaxSize,
			MinConfidence: findMinConfidence,
			Refresh:       findRefresh,
			SkipValidate:  findSkipValidation,
		},
	}
	req.Normalize()
	return req, nil
}

func memberCount(resp *model.Response) int {
	if resp == nil || resp.BuyerGroup == nil {
		return 0
	}
	return len(resp.BuyerGroup.Members)
}
