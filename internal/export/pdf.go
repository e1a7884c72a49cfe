package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfRenderTimeout = 30 * time.Second

// percentEncodeForDataURL encodes HTML for a data: URL. url.QueryEscape is
// not usable here because it turns spaces into +.
func percentEncodeForDataURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func findChromium() error {
	for _, name := range []string{"chromium-browser", "chromium"} {
		if _, err := exec.LookPath(name); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
}

// exportPDF renders the cue sheet through headless Chromium. The sheet is
// fed in as a data URL so no temp files hit disk.
func exportPDF(html string, showName string) (*Result, error) {
	if err := findChromium(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pdfRenderTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdfData []byte
	printSheet := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		// Letter size with 0.75in margins, matching the printed cue sheets
		// stage managers already tape to the console.
		pdfData, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(8.5).
			WithPaperHeight(11.0).
			WithMarginTop(0.75).
			WithMarginBottom(0.75).
			WithMarginLeft(0.75).
			WithMarginRight(0.75).
			WithPreferCSSPageSize(true).
			Do(ctx)
		return err
	})

	err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(html)),
		chromedp.WaitReady("body"),
		printSheet,
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &Result{
		Data:     pdfData,
		Filename: sanitizeFilename(showName) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// sanitizeFilename derives a download filename from the show name. Spaces
// become hyphens, anything outside [A-Za-z0-9_-] is dropped.
func sanitizeFilename(showName string) string {
	var b strings.Builder
	for _, r := range showName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "cuesheet"
	}
	return name
}
