// Package portal drives the reporting portal in headless Chrome to download
// the latest System1 CSV export.
package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"adpulse/internal/config"
	"adpulse/internal/logger"
)

// ErrNotCSV is returned when the captured export is empty or HTML.
var ErrNotCSV = errors.New("export is not a CSV")

type Exporter struct {
	cfg config.PortalConfig
	now func() time.Time
}

func NewExporter(cfg config.PortalConfig) (*Exporter, error) {
	if err := cfg.Ready(); err != nil {
		return nil, err
	}
	return &Exporter{cfg: cfg, now: time.Now}, nil
}

// OutputPath is where an export taken at ts is written.
func OutputPath(dir string, ts time.Time) string {
	return filepath.Join(dir, "system1_"+ts.Format("20060102-150405")+".csv")
}

// captures carries browser events from the listener to the waiters. The
// listener must never block, so sends are best effort into buffers.
// Download events may be delivered at browser and target level, so GUIDs
// are deduplicated.
type captures struct {
	downloads chan string
	responses chan network.RequestID
	pending   map[network.RequestID]bool

	mu   sync.Mutex
	seen map[string]bool
}

func newCaptures() *captures {
	return &captures{
		downloads: make(chan string, 4),
		responses: make(chan network.RequestID, 16),
		pending:   make(map[network.RequestID]bool),
		seen:      make(map[string]bool),
	}
}

func (c *captures) listenDownloads(ev any) {
	e, ok := ev.(*browser.EventDownloadProgress)
	if !ok || e.State != browser.DownloadProgressStateCompleted {
		return
	}
	c.mu.Lock()
	dup := c.seen[e.GUID]
	c.seen[e.GUID] = true
	c.mu.Unlock()
	if dup {
		return
	}
	select {
	case c.downloads <- e.GUID:
	default:
	}
}

func (c *captures) listen(ev any) {
	switch e := ev.(type) {
	case *browser.EventDownloadProgress:
		c.listenDownloads(e)
	case *network.EventResponseReceived:
		if e.Response != nil && isCSVResponse(e.Response.URL, e.Response.MimeType, e.Response.Headers) {
			c.pending[e.RequestID] = true
		}
	case *network.EventLoadingFinished:
		if c.pending[e.RequestID] {
			delete(c.pending, e.RequestID)
			select {
			case c.responses <- e.RequestID:
			default:
			}
		}
	}
}

func isCSVResponse(url, mime string, headers network.Headers) bool {
	mime = strings.ToLower(mime)
	if strings.Contains(mime, "csv") {
		return true
	}
	for k, v := range headers {
		if strings.EqualFold(k, "content-disposition") && strings.Contains(strings.ToLower(fmt.Sprint(v)), ".csv") {
			return true
		}
	}
	path, _, _ := strings.Cut(strings.ToLower(url), "?")
	return strings.HasSuffix(path, ".csv")
}

// Export logs in when login selectors are configured, clicks the export
// button and saves whichever arrives first: the browser download or the
// CSV network response. Clicks are retried up to click_retries times.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	cfg := e.cfg
	dir := cfg.DownloadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", cfg.Headless))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	caps := newCaptures()
	chromedp.ListenTarget(tabCtx, caps.listen)
	chromedp.ListenBrowser(tabCtx, caps.listenDownloads)

	setup := chromedp.Tasks{
		network.Enable(),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
		chromedp.Navigate(cfg.URL),
	}
	if cfg.UserSelector != "" {
		logger.Infof("portal: logging in as %s", cfg.Username)
		setup = append(setup,
			chromedp.WaitVisible(cfg.UserSelector, chromedp.ByQuery),
			chromedp.SendKeys(cfg.UserSelector, cfg.Username, chromedp.ByQuery),
			chromedp.SendKeys(cfg.PassSelector, cfg.Password, chromedp.ByQuery),
			chromedp.Click(cfg.SubmitSelector, chromedp.ByQuery),
		)
	}
	ready := cfg.ReadySelector
	if ready == "" {
		ready = cfg.ExportSelector
	}
	setup = append(setup, chromedp.WaitVisible(ready, chromedp.ByQuery))
	if err := chromedp.Run(tabCtx, setup); err != nil {
		return "", fmt.Errorf("portal: open %s: %w", cfg.URL, err)
	}

	retries := cfg.ClickRetries
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		data, err := e.clickAndCapture(tabCtx, caps, absDir)
		if err == nil {
			out := OutputPath(dir, e.now())
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return "", err
			}
			logger.Infof("portal: saved %d bytes to %s", len(data), out)
			return out, nil
		}
		lastErr = err
		logger.Warnf("portal: export attempt %d/%d failed: %v", attempt, retries, err)
		if tabCtx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("portal: export failed after %d attempts: %w", retries, lastErr)
}

const perClickWait = 30 * time.Second

func (e *Exporter) clickAndCapture(tabCtx context.Context, caps *captures, dir string) ([]byte, error) {
	if err := chromedp.Run(tabCtx, chromedp.Click(e.cfg.ExportSelector, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("click export: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(tabCtx, perClickWait)
	defer cancel()

	fromDownload := func(ctx context.Context) ([]byte, error) {
		select {
		case guid := <-caps.downloads:
			path := filepath.Join(dir, guid)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			_ = os.Remove(path)
			return checkCSV(data)
		case <-ctx.Done():
			return nil, fmt.Errorf("download: %w", ctx.Err())
		}
	}
	fromResponse := func(ctx context.Context) ([]byte, error) {
		select {
		case id := <-caps.responses:
			var body []byte
			err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				body, err = network.GetResponseBody(id).Do(ctx)
				return err
			}))
			if err != nil {
				return nil, fmt.Errorf("response body: %w", err)
			}
			return checkCSV(body)
		case <-ctx.Done():
			return nil, fmt.Errorf("network response: %w", ctx.Err())
		}
	}
	return firstOf(waitCtx, fromDownload, fromResponse)
}

func checkCSV(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || strings.HasPrefix(trimmed, "<") {
		return nil, ErrNotCSV
	}
	return data, nil
}
