package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Formats understood by Writer.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
	FormatJSON     = "json"
)

// Writer renders an envelope into the requested formats under Dir.
type Writer struct {
	Dir     string
	Formats []string
	PDF     PDFRenderer
	Logger  *zap.Logger
}

// Written maps each produced format to its file path.
type Written map[string]string

// Primary is the path worth showing first: markdown when present.
func (w Written) Primary() string {
	for _, f := range []string{FormatMarkdown, FormatHTML, FormatPDF, FormatJSON} {
		if p, ok := w[f]; ok {
			return p
		}
	}
	return ""
}

func (w Writer) Write(ctx context.Context, env Envelope) (Written, error) {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(w.Dir, "arxiv_papers_"+env.GeneratedAt.Format(dateLayout))
	out := Written{}

	markdown := Markdown(env)
	var htmlDoc string
	for _, f := range w.Formats {
		format := strings.ToLower(strings.TrimSpace(f))
		var err error
		switch format {
		case FormatMarkdown:
			err = writeFile(base+".md", []byte(markdown))
			out[format] = base + ".md"
		case FormatJSON:
			err = SaveEnvelope(base+".json", env)
			out[format] = base + ".json"
		case FormatHTML, FormatPDF:
			if htmlDoc == "" {
				if htmlDoc, err = HTML(labelsFor(env.Locale).title, markdown); err != nil {
					return nil, err
				}
			}
			if format == FormatHTML {
				err = writeFile(base+".html", []byte(htmlDoc))
				out[format] = base + ".html"
				break
			}
			if w.PDF == nil {
				return nil, fmt.Errorf("pdf output requested without a renderer")
			}
			var pdf []byte
			pg := PDFPage{
				Title:  labelsFor(env.Locale).title + " - " + env.GeneratedAt.Format(dateLayout),
				Footer: "run " + env.RunID,
			}
			if pdf, err = w.PDF.Render(ctx, htmlDoc, pg); err != nil {
				// Logged only; the remaining formats are still written.
				logger.Warn("report_pdf_failed", zap.Error(err))
				continue
			}
			err = writeFile(base+".pdf", pdf)
			out[format] = base + ".pdf"
		default:
			return nil, fmt.Errorf("unknown report format %q", f)
		}
		if err != nil {
			return nil, err
		}
		logger.Info("report_written", zap.String("format", format), zap.String("path", out[format]))
	}
	return out, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
