// Package browser drives a headless Chrome session per scrape task: navigate,
// dismiss consent interstitials, detect block markers, and hand back the
// rendered HTML for extraction.
package browser

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/resilience"
	"github.com/tablescout/review-pipeline/internal/site"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Options configures the shared Chrome allocator.
type Options struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
	// ReadyTimeout bounds the content-readiness wait after navigation: the
	// page is polled until the document is complete and a watched selector
	// appears, or this much time has passed. Always shorter than NavTimeout.
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.ReadyTimeout <= 0 || o.ReadyTimeout >= o.NavTimeout {
		o.ReadyTimeout = o.NavTimeout / 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 150 * time.Millisecond
	}
	return o
}

// Manager owns one Chrome allocator shared by all sessions of a run.
type Manager struct {
	opts     Options
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewManager builds the exec allocator. Chrome itself is launched lazily by
// the first session.
func NewManager(ctx context.Context, opts Options) *Manager {
	opts = opts.withDefaults()
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return &Manager{opts: opts, allocCtx: allocCtx, cancel: cancel}
}

// Close tears down the allocator and every Chrome process it spawned.
func (m *Manager) Close() {
	m.cancel()
}

// Fetch opens a one-shot session for the contract, fetches the target, and
// closes the tab. Each scrape attempt gets a fresh tab so block state does not
// leak between attempts.
func (m *Manager) Fetch(ctx context.Context, targetURL string, contract site.Contract) (string, error) {
	session, err := m.OpenSession(contract)
	if err != nil {
		return "", err
	}
	defer session.Close()
	return session.FetchHTML(ctx, targetURL, contract)
}

// Session is one browser tab configured for a specific site contract.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// OpenSession creates a tab with the contract's locale and timezone applied
// and a lightly jittered viewport. The caller must Close it.
func (m *Manager) OpenSession(contract site.Contract) (*Session, error) {
	ctx, cancel := chromedp.NewContext(m.allocCtx)

	width := int64(1280 + rand.Intn(160))
	height := int64(860 + rand.Intn(120))

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(width, height),
		chromedp.Evaluate(stealthScript, nil),
	}
	if contract.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(contract.Locale))
	}
	if contract.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(contract.Timezone))
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		cancel()
		return nil, eris.Wrapf(err, "browser: open session for %s", contract.Kind)
	}
	return &Session{ctx: ctx, cancel: cancel, opts: m.opts}, nil
}

// Close releases the tab. Safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}

// FetchHTML navigates to targetURL and returns the rendered document.
// Readiness is an explicit bounded condition, not a fixed sleep: the page is
// polled until the document is complete and a review container or block
// marker is present, capped by ReadyTimeout. Consent dialogs named by the
// contract are dismissed once; a consent dialog still present after
// dismissal, or a block marker, yields a BlockedError, and navigation
// failures or timeouts yield a NavigationError. A settled page without
// review containers is NOT an error here; that is the extractor's call.
func (s *Session) FetchHTML(ctx context.Context, targetURL string, contract site.Contract) (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavTimeout)
	defer cancel()
	go func() {
		// propagate caller cancellation into the chromedp context
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	var consentMarker, blockMarker string
	tasks := chromedp.Tasks{
		chromedp.Navigate(targetURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return s.waitForContent(ctx, contract)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(contract.ConsentSelectors) == 0 {
				return nil
			}
			var dismissed bool
			clickErr := chromedp.Evaluate(clickFirstScript(contract.ConsentSelectors), &dismissed).Do(ctx)
			if dismissed {
				zap.L().Debug("dismissed consent dialog", zap.String("url", targetURL))
				if err := s.waitForContent(ctx, contract); err != nil {
					return err
				}
			}
			// a consent dialog that survives dismissal, or a dismissal that
			// errored outright, is a block, not a readable page
			if err := chromedp.Evaluate(firstPresentScript(contract.ConsentSelectors), &consentMarker).Do(ctx); err != nil {
				if clickErr != nil {
					err = clickErr
				}
				return err
			}
			if consentMarker == "" && clickErr != nil {
				consentMarker = contract.ConsentSelectors[0]
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(contract.BlockSelectors) == 0 {
				return nil
			}
			return chromedp.Evaluate(firstPresentScript(contract.BlockSelectors), &blockMarker).Do(ctx)
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", &resilience.NavigationError{URL: targetURL, Cause: err}
	}
	if err := fetchOutcome(targetURL, consentMarker, blockMarker); err != nil {
		return "", err
	}
	return html, nil
}

// fetchOutcome classifies a completed page load. A present block marker wins
// over a lingering consent dialog; either one means the session is blocked.
func fetchOutcome(targetURL, consentMarker, blockMarker string) error {
	if blockMarker != "" {
		return &resilience.BlockedError{URL: targetURL, Marker: blockMarker}
	}
	if consentMarker != "" {
		return &resilience.BlockedError{URL: targetURL, Marker: consentMarker}
	}
	return nil
}

// waitForContent polls until the document has finished loading and one of
// the contract's container or block selectors is present. A page that loads
// but never shows either selector stops waiting at ReadyTimeout; empty
// result pages are legitimate.
func (s *Session) waitForContent(ctx context.Context, contract site.Contract) error {
	watched := make([]string, 0, len(contract.ContainerSelectors)+len(contract.BlockSelectors))
	watched = append(watched, contract.ContainerSelectors...)
	watched = append(watched, contract.BlockSelectors...)
	probe := firstPresentScript(watched)

	deadline := time.Now().Add(s.opts.ReadyTimeout)
	for {
		var state string
		if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
			return err
		}
		if state == "complete" {
			var marker string
			if err := chromedp.Evaluate(probe, &marker).Do(ctx); err != nil {
				return err
			}
			if marker != "" {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}

const stealthScript = `(function () {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  if (!window.chrome) { window.chrome = { runtime: {} }; }
})();`

// clickFirstScript clicks the first matching selector and reports whether
// anything was clicked.
func clickFirstScript(selectors []string) string {
	list, _ := json.Marshal(selectors)
	return `(function () {
  const selectors = ` + string(list) + `;
  for (const sel of selectors) {
    const node = document.querySelector(sel);
    if (node) {
      node.click();
      return true;
    }
  }
  return false;
})();`
}

// firstPresentScript returns the first selector with a match, or "".
func firstPresentScript(selectors []string) string {
	list, _ := json.Marshal(selectors)
	return `(function () {
  const selectors = ` + string(list) + `;
  for (const sel of selectors) {
    if (document.querySelector(sel)) {
      return sel;
    }
  }
  return '';
})();`
}
