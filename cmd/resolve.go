package cmd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/engine"
	"github.com/pagepilot/pagepilot/internal/observability"
	"github.com/pagepilot/pagepilot/internal/resolver"
	"github.com/pagepilot/pagepilot/internal/staticdom"
)

var (
	resolveURL      string
	resolveSnapshot string
	resolveTypeHint string
	resolveMax      int
)

// resolvedMatch is the JSON shape printed per match.
type resolvedMatch struct {
	Score      float64             `json:"score"`
	Confidence resolver.Confidence `json:"confidence"`
	Reason     string              `json:"reason"`
	Selector   string              `json:"selector"`
	Tag        string              `json:"tag"`
	Text       string              `json:"text,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <target description>",
	Short: "Resolve a plain-language element description and print the ranked matches.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (resolveURL == "") == (resolveSnapshot == "") {
			return fmt.Errorf("exactly one of --url or --snapshot is required")
		}

		logger := observability.GetLogger()
		ctx := cmd.Context()

		var page engine.Page
		if resolveSnapshot != "" {
			p, err := staticdom.LoadFile(resolveSnapshot)
			if err != nil {
				return err
			}
			page = p
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

			live, err := mgr.OpenPage(ctx, resolveURL)
			if err != nil {
				return err
			}
			defer live.Close()
			page = live
		}

		res := resolver.NewResolver(page, appCfg.Resolver, logger)
		matches, err := res.FindMultiple(ctx, args[0], resolver.Options{
			Type: resolver.TypeHint(resolveTypeHint),
		}, resolveMax)
		if err != nil {
			return err
		}

		out := make([]resolvedMatch, 0, len(matches))
		for _, m := range matches {
			out = append(out, resolvedMatch{
				Score:      m.Score,
				Confidence: m.Confidence,
				Reason:     m.Reason,
				Selector:   m.Selector,
				Tag:        m.Element.Tag,
				Text:       m.Element.Text,
			})
		}

		encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode matches: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

		if len(matches) == 0 {
			return fmt.Errorf("no element matched %q", args[0])
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveURL, "url", "u", "", "URL to open in a live browser tab")
	resolveCmd.Flags().StringVarP(&resolveSnapshot, "snapshot", "s", "", "path to an offline HTML snapshot")
	resolveCmd.Flags().StringVarP(&resolveTypeHint, "type", "t", "any", "candidate type hint: input, button, link or any")
	resolveCmd.Flags().IntVarP(&resolveMax, "max", "n", 5, "maximum number of matches to print")
	rootCmd.AddCommand(resolveCmd)
}
