// Package browser drives a Chrome page over the DevTools protocol and exposes its
// document to the label engine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"prefixhider/internal/config"
	"prefixhider/internal/logging"
)

// ErrNotConnected is returned when the manager has no browser.
var ErrNotConnected = errors.New("browser not connected")

// PageInfo describes an open page.
type PageInfo struct {
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// SessionManager owns the Chrome connection.
type SessionManager struct {
	cfg        config.BrowserConfig
	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	launched   bool // we started the process and must close it
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg config.BrowserConfig) *SessionManager {
	return &SessionManager{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		m.closeLocked()
	}

	controlURL := m.cfg.DebuggerURL
	launched := false
	if controlURL == "" {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
		launched = true
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.launched = launched
	logging.Browser("connected to %s (launched=%v)", controlURL, launched)
	return nil
}

// launch starts Chrome from cfg.Launch, or rod's managed binary when it is empty.
func (m *SessionManager) launch() (string, error) {
	if len(m.cfg.Launch) == 0 {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return "", fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		return url, nil
	}

	bin := m.cfg.Launch[0]
	url, err := newLauncher(bin, m.cfg.Launch[1:], m.cfg.Headless).Launch()
	if err == nil {
		return url, nil
	}
	// Retry without the custom flags; a bad flag should not keep us from starting.
	alt, altErr := launcher.New().Bin(bin).Headless(m.cfg.Headless).Launch()
	if altErr != nil {
		return "", fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
	}
	logging.BrowserWarn("launch with custom flags failed, started without them: %v", err)
	return alt, nil
}

func newLauncher(bin string, rawFlags []string, headless bool) *launcher.Launcher {
	l := launcher.New().Bin(bin).Headless(headless)
	for _, rawFlag := range rawFlags {
		name, val, hasVal := parseFlag(rawFlag)
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func parseFlag(raw string) (name, val string, hasVal bool) {
	flagStr := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(flagStr, "=")
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes a launched browser. An attached browser is left running.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *SessionManager) closeLocked() error {
	var err error
	if m.browser != nil && m.launched {
		err = m.browser.Close()
	}
	m.browser = nil
	m.controlURL = ""
	m.launched = false
	return err
}

// Pages lists the open pages whose URL contains the configured pattern.
func (m *SessionManager) Pages(ctx context.Context) ([]PageInfo, error) {
	pages, err := m.matchingPages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PageInfo, 0, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		out = append(out, PageInfo{TargetID: string(info.TargetID), URL: info.URL, Title: info.Title})
	}
	return out, nil
}

func (m *SessionManager) matchingPages(ctx context.Context) ([]*rod.Page, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrNotConnected
	}

	pages, err := b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var out []*rod.Page
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if string(info.Type) == "page" && matchesURL(info.URL, m.cfg.URLPattern) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesURL(url, pattern string) bool {
	return pattern == "" || strings.Contains(url, pattern)
}

// AttachPage returns the first open page matching the URL pattern, opening
// cfg.TargetURL when none is open.
func (m *SessionManager) AttachPage(ctx context.Context) (*rod.Page, error) {
	pages, err := m.matchingPages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		info, _ := pages[0].Info()
		if info != nil {
			logging.Browser("attaching to existing page %s", info.URL)
		}
		return pages[0], nil
	}
	if m.cfg.TargetURL == "" {
		return nil, fmt.Errorf("no page matches %q and no target_url is configured", m.cfg.URLPattern)
	}
	return m.OpenPage(ctx, m.cfg.TargetURL)
}

// OpenPage opens url in a new tab and waits for it to load.
func (m *SessionManager) OpenPage(ctx context.Context, url string) (*rod.Page, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrNotConnected
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.GetNavigationTimeout())
	defer cancel()
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		logging.BrowserWarn("page %s did not finish loading: %v", url, err)
	}
	logging.Browser("opened %s", url)
	return page, nil
}
