package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/propharvest/internal/logger"
)

// Chrome lifecycle event fired when no more than two connections have been
// active for 500ms.
const networkAlmostIdle = "networkAlmostIdle"

// Chrome drives a single headless Chrome tab through chromedp.
type Chrome struct {
	cfg         Config
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChrome launches Chrome and opens the tab every navigation will reuse.
func NewChrome(cfg Config) (*Chrome, error) {
	var opts []chromedp.ExecAllocatorOption
	if cfg.Stealth {
		opts = append(chromedp.DefaultExecAllocatorOptions[:], stealthAllocatorOptions(cfg.Headless)...)
	} else {
		opts = append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1440, 900),
		)
	}

	execPath := cfg.ExecPath
	if execPath == "" {
		execPath = FindChromePath()
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf("chromedp")),
		chromedp.WithErrorf(logger.Debugf("chromedp")),
	)

	// Running with no actions is what actually starts the browser, so a
	// missing binary surfaces here and not on the first navigation.
	var actions []chromedp.Action
	if cfg.Stealth {
		actions = append(actions, injectStealthScript())
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Debug("chrome session started",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"exec_path", execPath)

	return &Chrome{
		cfg:         cfg,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// scope derives a context for one call: it runs on the shared tab, ends when
// the caller's ctx ends, and optionally carries a timeout. Cancelling it
// aborts the actions without closing the tab.
func (c *Chrome) scope(ctx context.Context, opts NavigateOptions) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(c.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	if opts.Timeout <= 0 {
		return runCtx, func() {
			stop()
			cancel()
		}
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(runCtx, opts.Timeout)
	return timeoutCtx, func() {
		cancelTimeout()
		stop()
		cancel()
	}
}

// Navigate loads url in the tab.
func (c *Chrome) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	runCtx, cancel := c.scope(ctx, opts)
	defer cancel()

	logger.Debug("chrome navigating", "url", url, "wait", opts.Wait, "timeout", opts.Timeout)

	var action chromedp.Action = chromedp.Navigate(url)
	if opts.Wait == WaitNetworkIdle {
		action = navigateUntilIdle(url)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// navigateUntilIdle navigates and then blocks until Chrome reports the
// network as almost idle for the document the navigation created. Events
// from iframes and from the previous document are ignored.
func navigateUntilIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		watcher := newIdleWatcher()

		listenCtx, stopListening := context.WithCancel(ctx)
		defer stopListening()
		chromedp.ListenTarget(listenCtx, func(ev any) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok {
				watcher.observe(e.FrameID, e.LoaderID, e.Name)
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		frameID, loaderID, errorText, _, err := page.Navigate(url).Do(ctx)
		switch {
		case err != nil:
			return err
		case errorText != "":
			return fmt.Errorf("page load error %s", errorText)
		case loaderID == "":
			// Same-document navigation: no new document to wait for.
			return nil
		}
		return watcher.wait(ctx, frameID, loaderID)
	}
}

// idleWatcher records which (frame, loader) pairs reached network idle.
// Events may arrive before the navigation that caused them returns, so
// they are kept rather than matched on the fly.
type idleWatcher struct {
	mu     sync.Mutex
	idle   map[cdp.LoaderID]cdp.FrameID
	notify chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{
		idle:   make(map[cdp.LoaderID]cdp.FrameID),
		notify: make(chan struct{}, 1),
	}
}

func (w *idleWatcher) observe(frameID cdp.FrameID, loaderID cdp.LoaderID, name string) {
	if name != networkAlmostIdle {
		return
	}
	w.mu.Lock()
	w.idle[loaderID] = frameID
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *idleWatcher) reached(frameID cdp.FrameID, loaderID cdp.LoaderID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.idle[loaderID]
	return ok && f == frameID
}

// wait blocks until the given frame's document is idle or ctx ends.
func (w *idleWatcher) wait(ctx context.Context, frameID cdp.FrameID, loaderID cdp.LoaderID) error {
	for !w.reached(frameID, loaderID) {
		select {
		case <-w.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Location returns the tab's current URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	runCtx, cancel := c.scope(ctx, NavigateOptions{})
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// HTML returns the tab's serialized DOM.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := c.scope(ctx, NavigateOptions{})
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read outer html: %w", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.tabCtx)
	c.cancelTab()
	c.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// Type returns the browser type.
func (c *Chrome) Type() string {
	return string(ModeDynamic)
}

// Common Chrome/Chromium binary names across different systems
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns the first Chrome/Chromium binary found on PATH or
// at a well-known install location, or "" to let chromedp decide.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found - dynamic mode may not start")
	return ""
}
