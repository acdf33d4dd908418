package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the most common headless tells before any page script
// runs. It covers the checks the listing site's bot filter is known to use,
// not every known headless fingerprint.
const stealthScript = `
(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
	delete Object.getPrototypeOf(navigator).webdriver;

	Object.defineProperty(navigator, 'languages', { get: () => ['sq-AL', 'sq', 'en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });

	if (!window.chrome) {
		window.chrome = { runtime: {}, app: { isInstalled: false } };
	}

	const query = window.navigator.permissions && window.navigator.permissions.query;
	if (query) {
		window.navigator.permissions.query = (p) =>
			p && p.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: query.call(window.navigator.permissions, p);
	}
})();
`

// stealthAllocatorOptions are Chrome flags that drop automation markers.
func stealthAllocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", "sq-AL,sq,en-US,en"),
		chromedp.WindowSize(1920, 1080),
	}
}

// injectStealthScript registers stealthScript for every document the tab
// loads from now on.
func injectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}
