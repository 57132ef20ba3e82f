package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const reportCSS = `body{font-family:-apple-system,"Segoe UI","PingFang SC","Noto Sans CJK SC",sans-serif;line-height:1.6;color:#1c1917;background:#fff;margin:0;padding:1rem;}
.report{max-width:960px;margin:0 auto;}
h1{border-bottom:2px solid #92400e;padding-bottom:.3rem;}
h2{margin-top:2rem;color:#92400e;}
h3{margin-bottom:.4rem;}
a{color:#1d4ed8;}
hr{border:0;border-top:1px solid #d6d3d1;margin:1.2rem 0;}
table{border-collapse:collapse;width:100%;font-size:.85rem;}
th,td{border:1px solid #a8a29e;padding:.35rem .45rem;text-align:left;vertical-align:top;}
@media print{@page{size:auto;margin:12mm;} body{padding:0;}}`

// HTML converts report markdown into a standalone document.
func HTML(title, markdown string) (string, error) {
	var body strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body><main class='report'>" +
		body.String() +
		"</main></body></html>", nil
}
