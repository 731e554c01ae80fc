// Package browser drives a real Chrome instance over the DevTools protocol.
// It owns the browser process lifecycle and exposes live tabs as engine.Page
// implementations.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/internal/config"
)

// Manager handles the lifecycle of the headless browser process. All tab
// contexts derive from its allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks open tabs for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launch(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.allocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Probe with a short-lived tab to confirm the process started.
	testCtx, cancelTimeout := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()
	defer cancelTimeout()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	// Drop the enable-automation flag: some pages change behavior when
	// they detect it. Boolean flags set to false are omitted from the
	// command line, which removes the default.
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("enable-automation", false))

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}

	// Flags required when running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// OpenPage creates a new tab, navigates it to url and installs the element
// collector. Close the returned page when done.
func (m *Manager) OpenPage(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(m.allocatorCtx)

	navCtx, cancelNav := context.WithTimeout(tabCtx, m.cfg.NavigationTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	page := newPage(tabCtx, cancelTab, m.logger)
	if err := page.installCollector(ctx); err != nil {
		cancelTab()
		return nil, err
	}

	m.wg.Add(1)
	page.onClose = m.wg.Done
	m.logger.Info("Opened page", zap.String("url", url))
	return page, nil
}

// Shutdown waits for open tabs to close, bounded by ctx, then terminates the
// browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated.")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	m.allocatorCancel()
	return nil
}
