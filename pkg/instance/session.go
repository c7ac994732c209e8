package instance

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Page is the part of a browser session an Instance drives.
type Page interface {
	Goto(url string) error
	Reload() error

	// Evaluate runs a JavaScript expression or function in the page and
	// returns its JSON-compatible result.
	Evaluate(expression string, arg ...interface{}) (interface{}, error)

	// WaitFor waits until selector reaches state ("attached", "visible",
	// "hidden" or "detached").
	WaitFor(selector, state string, timeoutMs float64) error

	ClickAt(x, y float64) error
	Type(text string) error
	Press(key string) error
	Screenshot() ([]byte, error)
	Content() (string, error)

	// Close releases the page and every resource opened for it.
	Close() error
}

// Launcher opens one Page per instance.
type Launcher interface {
	Launch(opts SessionOptions) (Page, error)
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default session values. The viewport fits the task area with a margin.
const (
	DefaultTimeout        = 30000.0
	DefaultViewportWidth  = 500
	DefaultViewportHeight = 300
)

// PlaywrightLauncher starts a Chromium browser through Playwright for each
// session. The driver and browsers are installed once per launcher.
type PlaywrightLauncher struct {
	// SkipInstall assumes the Playwright driver and Chromium are present.
	SkipInstall bool

	installOnce sync.Once
	installErr  error
}

// NewPlaywrightLauncher creates a launcher that installs Playwright on first use.
func NewPlaywrightLauncher() *PlaywrightLauncher {
	return &PlaywrightLauncher{}
}

func runOptions() *playwright.RunOptions {
	// Discard driver output so it does not interleave with the CLI's.
	return &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
}

func (l *PlaywrightLauncher) install() error {
	l.installOnce.Do(func() {
		if l.SkipInstall {
			return
		}
		if err := playwright.Install(runOptions()); err != nil {
			l.installErr = fmt.Errorf("failed to install playwright: %w", err)
		}
	})
	return l.installErr
}

// withDefaults fills the timeout and any unset viewport dimension.
func (o SessionOptions) withDefaults() SessionOptions {
	vp := Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	if o.Viewport != nil {
		if o.Viewport.Width > 0 {
			vp.Width = o.Viewport.Width
		}
		if o.Viewport.Height > 0 {
			vp.Height = o.Viewport.Height
		}
	}
	o.Viewport = &vp
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Launch starts a driver, a browser, a context and a page. Each instance
// gets its own driver so a crash takes down only that instance.
func (l *PlaywrightLauncher) Launch(opts SessionOptions) (Page, error) {
	if err := l.install(); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	pw, err := playwright.Run(runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	return &playwrightPage{pw: pw, browser: browser, context: context, page: page}, nil
}

// playwrightPage adapts a Playwright page to Page.
type playwrightPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *playwrightPage) Goto(url string) error {
	waitUntil := playwright.WaitUntilStateLoad
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Reload() error {
	if _, err := p.page.Reload(); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	return p.page.Evaluate(expression, arg...)
}

func (p *playwrightPage) WaitFor(selector, state string, timeoutMs float64) error {
	opts := playwright.PageWaitForSelectorOptions{}
	if state != "" {
		s := playwright.WaitForSelectorState(state)
		opts.State = &s
	}
	if timeoutMs > 0 {
		opts.Timeout = &timeoutMs
	}
	if _, err := p.page.WaitForSelector(selector, opts); err != nil {
		return fmt.Errorf("wait for %s to be %s failed: %w", selector, state, err)
	}
	return nil
}

func (p *playwrightPage) ClickAt(x, y float64) error {
	return p.page.Mouse().Click(x, y)
}

func (p *playwrightPage) Type(text string) error {
	return p.page.Keyboard().Type(text)
}

func (p *playwrightPage) Press(key string) error {
	return p.page.Keyboard().Press(key)
}

func (p *playwrightPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot()
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

// Close tears down page, context, browser and driver, continuing past
// errors and returning the first.
func (p *playwrightPage) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(p.page.Close())
	record(p.context.Close())
	record(p.browser.Close())
	record(p.pw.Stop())
	return first
}
