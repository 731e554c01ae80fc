package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/engine"
	"github.com/pagepilot/pagepilot/internal/observability"
	"github.com/pagepilot/pagepilot/internal/resolver"
	"github.com/pagepilot/pagepilot/internal/staticdom"
)

var (
	runPlanFile string
	runURL      string
	runSnapshot string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an automation plan against a live page or an offline snapshot.",
	Long: `Reads a plan (a JSON array of actions) and replays it step by step.
With --url the plan runs in a real browser tab; with --snapshot it runs
against a parsed HTML file, recording the synthetic events instead of
delivering them. The execution summary is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (runURL == "") == (runSnapshot == "") {
			return fmt.Errorf("exactly one of --url or --snapshot is required")
		}

		data, err := os.ReadFile(runPlanFile)
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}
		plan, err := schemas.DecodePlan(data)
		if err != nil {
			return err
		}

		logger := observability.GetLogger()
		ctx := cmd.Context()

		var page engine.Page
		if runSnapshot != "" {
			page, err = staticdom.LoadFile(runSnapshot)
			if err != nil {
				return err
			}
		} else {
			mgr, err := browser.NewManager(ctx, logger, appCfg.Browser)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := mgr.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Browser shutdown failed", zap.Error(err))
				}
			}()

			live, err := mgr.OpenPage(ctx, runURL)
			if err != nil {
				return err
			}
			defer live.Close()
			page = live
		}

		res := resolver.NewResolver(page, appCfg.Resolver, logger)
		eng := engine.NewEngine(page, res, appCfg.Engine, logger)

		summary := eng.ExecutePlan(ctx, plan)

		out, err := schemas.EncodeSummary(summary)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !summary.Completed {
			return fmt.Errorf("plan aborted: %s", summary.AbortReason)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "", "path to the plan JSON file (required)")
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "URL to open in a live browser tab")
	runCmd.Flags().StringVarP(&runSnapshot, "snapshot", "s", "", "path to an offline HTML snapshot")
	_ = runCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(runCmd)
}
