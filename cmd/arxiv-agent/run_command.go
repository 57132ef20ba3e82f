package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/app"
)

type runFlags struct {
	days          int
	noAnalysis    bool
	minRelevance  string
	maxConcurrent int
	input         string
	outputDir     string
	skipSeen      bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, analyze and write today's report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("days") {
				cfg.DaysBack = f.days
			}
			if flags.Changed("min-relevance") {
				cfg.MinRelevance = f.minRelevance
			}
			if flags.Changed("max-concurrent") {
				cfg.MaxConcurrent = f.maxConcurrent
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = f.outputDir
			}
			if flags.Changed("skip-seen") {
				cfg.SkipSeen = f.skipSeen
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			logger.Info("arxiv_agent_start",
				zap.String("version", version),
				zap.Strings("categories", cfg.ArxivCategories),
				zap.Int("days_back", cfg.DaysBack),
				zap.Bool("analysis", !f.noAnalysis),
				zap.String("input", f.input),
			)
			a := app.New(cfg, app.Options{NoAnalysis: f.noAnalysis, Input: f.input, Version: version}, logger, cmd.OutOrStdout())
			_, err = a.Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().IntVarP(&f.days, "days", "d", 0, "Look back this many days (overrides days_back)")
	cmd.Flags().BoolVar(&f.noAnalysis, "no-analysis", false, "Skip LLM analysis and only list the fetched items")
	cmd.Flags().StringVar(&f.minRelevance, "min-relevance", "", "Lowest level kept in the report: high, medium or low")
	cmd.Flags().IntVar(&f.maxConcurrent, "max-concurrent", 0, "Maximum concurrent backend requests")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Analyze items from a JSON file instead of fetching arXiv")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for report files")
	cmd.Flags().BoolVar(&f.skipSeen, "skip-seen", false, "Skip items recorded by earlier runs")
	return cmd
}
