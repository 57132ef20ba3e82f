package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFPage is the per-document text printed in the page margins.
type PDFPage struct {
	Title  string
	Footer string
}

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, htmlDoc string, pg PDFPage) ([]byte, error)
}

const (
	PaperA4     = "a4"
	PaperLetter = "letter"
)

// paper sizes in inches
var papers = map[string][2]float64{
	PaperA4:     {8.27, 11.69},
	PaperLetter: {8.5, 11},
}

func ValidPaper(name string) bool {
	_, ok := papers[strings.ToLower(name)]
	return ok
}

type PDFOptions struct {
	Timeout   time.Duration
	Paper     string
	Landscape bool
}

// ChromiumPDFRenderer prints through a headless Chromium.
type ChromiumPDFRenderer struct {
	chromePath string
	opts       PDFOptions
}

func NewChromiumPDFRenderer(opts PDFOptions) *ChromiumPDFRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if !ValidPaper(opts.Paper) {
		opts.Paper = PaperA4
	}
	return &ChromiumPDFRenderer{chromePath: detectChromePath(), opts: opts}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, htmlDoc string, pg PDFPage) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	alloc := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		alloc = append(alloc, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, alloc...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	params := r.printParams(pg)
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(htmlDoc))),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) (err error) {
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

const marginStyle = `font-size:8px;color:#777;width:100%;padding:0 0.45in;`

// printParams lays out the page: report title on the left of the header,
// the footer note and page counter below.
func (r *ChromiumPDFRenderer) printParams(pg PDFPage) *page.PrintToPDFParams {
	size := papers[strings.ToLower(r.opts.Paper)]
	width, height := size[0], size[1]
	if r.opts.Landscape {
		width, height = height, width
	}
	header := `<div style="` + marginStyle + `">` + html.EscapeString(pg.Title) + `</div>`
	footer := `<div style="` + marginStyle + `display:flex;justify-content:space-between;">` +
		`<span>` + html.EscapeString(pg.Footer) + `</span>` +
		`<span><span class="pageNumber"></span> / <span class="totalPages"></span></span></div>`
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(header).
		WithFooterTemplate(footer).
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(0.6).
		WithMarginBottom(0.6).
		WithMarginLeft(0.5).
		WithMarginRight(0.5)
}

func detectChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, p := range []string{"/usr/bin/chromium-browser", "/usr/bin/chromium", "/usr/bin/google-chrome"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
