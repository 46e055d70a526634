package report

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeRenderer loads a chart page into headless Chrome and captures it.
type ChromeRenderer struct {
	Timeout time.Duration
	// Settle is how long echarts gets to finish its entry animation.
	Settle time.Duration
}

func (c ChromeRenderer) RenderPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	browserCtx, closeBrowser := chromedp.NewContext(ctx)
	defer closeBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, durationOr(c.Timeout, 30*time.Second))
	defer cancel()

	var img []byte
	err := chromedp.Run(runCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(durationOr(c.Settle, 1500*time.Millisecond)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			img, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render chart png: %w", err)
	}
	return img, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
