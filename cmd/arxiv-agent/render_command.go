package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Wt-Zhou/arxiv-agent/internal/app"
	"github.com/Wt-Zhou/arxiv-agent/internal/report"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var formats []string
	var outputDir string
	cmd := &cobra.Command{
		Use:   "render <envelope.json>",
		Short: "Re-render reports from a saved JSON result without calling the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			w := report.Writer{Dir: outputDir, Formats: formats, Logger: logger}
			for _, f := range formats {
				if strings.EqualFold(f, report.FormatPDF) {
					w.PDF = report.NewChromiumPDFRenderer(cfg.PDF())
				}
			}
			written, err := app.Render(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			for _, f := range formats {
				if p, ok := written[strings.ToLower(f)]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", f, p)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{report.FormatMarkdown, report.FormatHTML}, "Formats to write (markdown, html, pdf, json)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for report files (default output_dir)")
	return cmd
}
