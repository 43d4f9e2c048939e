package pool

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// PlaywrightLauncher provisions real Chromium workers. Each worker gets its
// own browser process and context so fingerprints never leak between
// instances.
type PlaywrightLauncher struct {
	pw       *playwright.Playwright
	headless bool
	mu       sync.Mutex
}

type PlaywrightConfig struct {
	Headless bool
	// Install runs the playwright driver install step on startup.
	Install bool
}

func NewPlaywrightLauncher(cfg PlaywrightConfig) (*PlaywrightLauncher, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if cfg.Install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &PlaywrightLauncher{pw: pw, headless: cfg.Headless}, nil
}

func (l *PlaywrightLauncher) Launch(ctx context.Context, fp *models.Fingerprint) (Worker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if fp != nil {
		contextOpts.UserAgent = playwright.String(fp.UserAgent)
		contextOpts.Locale = playwright.String(fp.Language)
		contextOpts.TimezoneId = playwright.String(fp.Timezone)
		contextOpts.Viewport = &playwright.Size{
			Width:  fp.Viewport.Width,
			Height: fp.Viewport.Height,
		}
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &playwrightWorker{
		browser: browser,
		context: browserCtx,
		page:    page,
	}, nil
}

func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		l.pw = nil
	}
	return nil
}

type playwrightWorker struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	mu      sync.Mutex
}

// Fetch navigates the worker's page and returns the rendered document.
// Only navigation (GET) is supported; scrapers drive anything richer
// directly on the page.
func (w *playwrightWorker) Fetch(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
	if !strings.EqualFold(req.Method, "GET") {
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(req.Headers) > 0 {
		if err := w.page.SetExtraHTTPHeaders(req.Headers); err != nil {
			return nil, fmt.Errorf("failed to set headers: %w", err)
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		w.page.SetDefaultTimeout(float64(time.Until(deadline).Milliseconds()))
	}

	navResp, err := w.page.Goto(req.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	body, err := w.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	resp := &resilience.Response{
		StatusCode: 200,
		Headers:    map[string]string{},
		Body:       []byte(body),
	}
	if navResp != nil {
		resp.StatusCode = navResp.Status()
		if headers, err := navResp.AllHeaders(); err == nil {
			resp.Headers = headers
		}
	}
	return resp, nil
}

func (w *playwrightWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.page.Close()
	_ = w.context.Close()
	return w.browser.Close()
}
