// Package screenshot captures full-page PNG screenshots of web pages with a
// headless Chromium, collecting console output and page errors on the way.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWait              = time.Second
	DefaultWidth             = 1920
	DefaultHeight            = 1080
	DefaultNavigationTimeout = 30 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

type Options struct {
	URL    string
	Output string
	Wait   time.Duration
	Width  int
	Height int

	NavigationTimeout time.Duration
}

func DefaultOptions(target, output string) Options {
	return Options{
		URL:               target,
		Output:            output,
		Wait:              DefaultWait,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		NavigationTimeout: DefaultNavigationTimeout,
	}
}

func (o Options) Validate() error {
	if o.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", o.URL, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
		return fmt.Errorf("invalid url %q: scheme and host are required", o.URL)
	}
	if o.Output == "" {
		return errors.New("output path is required")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.Wait < 0 {
		return fmt.Errorf("wait must not be negative, got %s", o.Wait)
	}
	return nil
}

// Result holds what the page reported while it was open.
type Result struct {
	ConsoleMessages []string
	PageErrors      []string
}

// collector gathers browser events; chromedp delivers them on its own goroutine.
type collector struct {
	mu     sync.Mutex
	result Result

	armed bool
	idle  chan struct{}
}

func newCollector() *collector {
	return &collector{idle: make(chan struct{}, 1)}
}

// arm starts watching for network idle of the next navigation.
func (c *collector) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
	c.drainIdle()
}

func (c *collector) drainIdle() {
	select {
	case <-c.idle:
	default:
	}
}

func (c *collector) listen(ev any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		c.result.ConsoleMessages = append(c.result.ConsoleMessages, formatConsole(string(ev.Type), ev.Args))
	case *runtime.EventExceptionThrown:
		c.result.PageErrors = append(c.result.PageErrors, formatException(ev.ExceptionDetails))
	case *page.EventLifecycleEvent:
		if !c.armed {
			return
		}
		switch ev.Name {
		case "init":
			c.drainIdle()
		case "networkIdle":
			select {
			case c.idle <- struct{}{}:
			default:
			}
		}
	}
}

func (c *collector) snapshot() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{
		ConsoleMessages: append([]string(nil), c.result.ConsoleMessages...),
		PageErrors:      append([]string(nil), c.result.PageErrors...),
	}
}

func formatConsole(kind string, args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == nil:
		case len(arg.Value) > 0:
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		default:
			parts = append(parts, string(arg.Type))
		}
	}
	return fmt.Sprintf("[%s] %s", kind, strings.Join(parts, " "))
}

func formatException(details *runtime.ExceptionDetails) string {
	if details == nil {
		return "unknown error"
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}

// waitNetworkIdle blocks until the page reports network idle or ctx ends.
func waitNetworkIdle(ctx context.Context, idle <-chan struct{}) error {
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capture opens opts.URL, waits opts.Wait for the page to settle and writes a
// full-page PNG to opts.Output. Console messages and page errors seen up to
// that point are returned even when the capture fails.
func Capture(ctx context.Context, opts Options, logger *logrus.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	log := logger.WithField("url", opts.URL)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.UserAgent(userAgent),
	)
	if os.Geteuid() == 0 {
		// Chromium refuses to sandbox as root, which is the norm in containers.
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	events := newCollector()
	chromedp.ListenTarget(browserCtx, events.listen)

	// Start the browser before applying the navigation timeout, so the
	// timeout cannot tear the browser down with it.
	if err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log.Info("Navigating")
	events.arm()
	navCtx, cancelNav := context.WithTimeout(browserCtx, opts.NavigationTimeout)
	err := chromedp.Run(navCtx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil {
		if idleErr := waitNetworkIdle(navCtx, events.idle); idleErr != nil {
			log.WithError(idleErr).Warn("Network did not go idle, capturing anyway")
		}
	}
	cancelNav()
	if err != nil {
		result := events.snapshot()
		return &result, fmt.Errorf("navigate to %s: %w", opts.URL, err)
	}

	if opts.Wait > 0 {
		log.WithField("wait", opts.Wait).Info("Waiting for page to stabilize")
	}

	var buf []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Sleep(opts.Wait),
		chromedp.FullScreenshot(&buf, 100),
	); err != nil {
		result := events.snapshot()
		return &result, fmt.Errorf("capture screenshot: %w", err)
	}

	log.WithField("output", opts.Output).Info("Saving screenshot")
	if err := os.WriteFile(opts.Output, buf, 0o644); err != nil {
		result := events.snapshot()
		return &result, fmt.Errorf("write screenshot: %w", err)
	}

	result := events.snapshot()
	return &result, nil
}
