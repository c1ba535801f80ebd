package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"agenda/internal/config"
	appLog "agenda/internal/log"
)

// ReadySelector is the element /calendar renders once its content is in
// place. Capture waits for it before taking the screenshot.
const ReadySelector = `[data-ready="true"]`

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?date=2025-09-01".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// OptionsFromConfig fills size and timeout from the capture section.
func OptionsFromConfig(cfg config.CaptureConfig, pageURL, outputPath string) Options {
	return Options{
		URL:        pageURL,
		OutputPath: outputPath,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// CalendarURL builds the /calendar URL for a listen address, with optional
// date and category query values. Basic auth credentials are embedded when
// given.
func CalendarURL(listen, date, category string, auth *config.BasicAuthConfig) string {
	host := listen
	if len(host) > 0 && host[0] == ':' {
		host = "127.0.0.1" + host
	}
	u := url.URL{Scheme: "http", Host: host, Path: "/calendar"}
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if category != "" {
		q.Set("category", category)
	}
	u.RawQuery = q.Encode()
	if auth != nil && auth.Username != "" {
		u.User = url.UserPassword(auth.Username, auth.Password)
	}
	return u.String()
}

func (o *Options) validate() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("capture: invalid viewport %dx%d", o.Width, o.Height)
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return nil
}

// CalendarPNG launches a headless Chromium via chromedp, navigates to
// opts.URL, waits for ReadySelector and writes a full-page PNG to
// opts.OutputPath.
func CalendarPNG(parentCtx context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	appLog.Info("capture start", "width", opts.Width, "height", opts.Height, "out", opts.OutputPath)

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("capture done", "out", opts.OutputPath, "bytes", len(png))
	return nil
}
