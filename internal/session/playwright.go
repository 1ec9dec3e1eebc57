package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// EngineOptions configure the playwright-backed engine.
type EngineOptions struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

// blockedResourceTypes and blockedURLFragments cut page weight and
// detection surface: product markup survives, trackers and media do
// not.
var blockedResourceTypes = map[string]struct{}{
	"image":      {},
	"font":       {},
	"media":      {},
	"stylesheet": {},
}

var blockedURLFragments = []string{
	"google-analytics",
	"googletagmanager",
	"facebook",
	"analytics",
	"tracker",
	"advertisement",
	"doubleclick",
}

// NewPlaywrightFactory returns an EngineFactory launching a shared
// Chromium instance.
func NewPlaywrightFactory(opts EngineOptions) EngineFactory {
	return func() (Engine, error) {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}

		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-dev-shm-usage",
				"--no-sandbox",
				"--disable-setuid-sandbox",
				"--disable-web-security",
				"--disable-features=IsolateOrigins,site-per-process",
				"--window-size=1920,1080",
			},
		})
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		return &playwrightEngine{pw: pw, browser: browser, opts: opts}, nil
	}
}

type playwrightEngine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    EngineOptions
}

func (e *playwrightEngine) NewPage(identity string) (Page, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  e.opts.ViewportWidth,
			Height: e.opts.ViewportHeight,
		},
	}
	if identity != "" {
		contextOpts.UserAgent = playwright.String(identity)
	}

	context, err := e.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.Route("**/*", func(route playwright.Route) {
		if shouldBlock(route.Request().ResourceType(), route.Request().URL()) {
			route.Abort()
			return
		}
		route.Continue()
	}); err != nil {
		page.Close()
		context.Close()
		return nil, fmt.Errorf("failed to install request interception: %w", err)
	}

	return &playwrightPage{page: page, context: context}, nil
}

func (e *playwrightEngine) OnDisconnect(fn func()) {
	e.browser.OnDisconnected(func(playwright.Browser) {
		fn()
	})
}

func (e *playwrightEngine) Close() error {
	var errs []error

	if err := e.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}

	if err := e.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during engine close: %v", errs)
	}

	return nil
}

func shouldBlock(resourceType, url string) bool {
	if _, ok := blockedResourceTypes[resourceType]; ok {
		return true
	}

	lowered := strings.ToLower(url)
	for _, fragment := range blockedURLFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}

	return false
}

type playwrightPage struct {
	page    playwright.Page
	context playwright.BrowserContext
}

func (p *playwrightPage) Navigate(url string, opts NavigateOptions) (*NavigateResult, error) {
	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: waitUntilState(opts.WaitUntil),
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = playwright.Float(float64(opts.Timeout / time.Millisecond))
	}

	resp, err := p.page.Goto(url, gotoOpts)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &NavigateResult{}, nil
	}

	return &NavigateResult{Status: resp.Status()}, nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Alive() bool {
	return !p.page.IsClosed()
}

func (p *playwrightPage) Close() error {
	var errs []error

	if err := p.page.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := p.context.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during page close: %v", errs)
	}

	return nil
}

func waitUntilState(cond WaitCondition) *playwright.WaitUntilState {
	switch cond {
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}
