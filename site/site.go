// Package site is the source-site collaborator: it drives a headless
// Chrome session against the profile site, replays an exported cookie
// session to get past the bot challenge, and extracts the online listing
// and raw profile payloads from the rendered pages.
//
// site observes, it does not interpret: everything it returns is a
// loosely-typed profile.Raw for the normalizer to canonicalize.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"profilewatch/profile"
)

// Config tunes the site collaborator.
type Config struct {
	// BaseURL is the site root.
	BaseURL string
	// OnlinePath is the currently-online listing, relative to BaseURL.
	OnlinePath string
	// ProfilePathFormat builds a profile URL from a nickname.
	ProfilePathFormat string
	// CookieFile is the Netscape cookies.txt export used for login.
	CookieFile string
	// PageTimeout bounds navigation plus render per page.
	PageTimeout time.Duration
	// LoginMarker is the substring whose presence on the home page proves
	// the replayed session is authenticated.
	LoginMarker string
	// Selectors maps the site markup onto profile fields.
	Selectors Selectors
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://damadam.pk"
	}
	if c.OnlinePath == "" {
		c.OnlinePath = "/online_kon/"
	}
	if c.ProfilePathFormat == "" {
		c.ProfilePathFormat = "/users/%s/"
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.LoginMarker == "" {
		c.LoginMarker = "logout"
	}
}

// Site is a logged-in browser session against the source site. It
// implements the runner's Scraper contract. Not safe for concurrent use;
// the pipeline is sequential by design.
type Site struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	extract *extractor
	logger  *slog.Logger
}

// New creates a Site. Call Start before scraping.
func New(cfg Config, logger *slog.Logger) *Site {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Site{
		cfg:     cfg,
		extract: newExtractor(cfg.Selectors),
		logger:  logger,
	}
}

// Start launches headless Chrome, replays the cookie session, and verifies
// the login. Any error here is a fatal setup error: without an
// authenticated session no item can be processed.
func (s *Site) Start(ctx context.Context) error {
	content, err := os.ReadFile(s.cfg.CookieFile)
	if err != nil {
		return fmt.Errorf("site: read cookie file: %w", err)
	}
	cookies, err := parseCookieFile(string(content))
	if err != nil {
		return err
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	wsURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("site: launch chrome: %w", err)
	}
	s.lnch = l

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("site: connect: %w", err)
	}
	s.browser = b

	if err := b.SetCookies(cookies); err != nil {
		return fmt.Errorf("site: set cookies: %w", err)
	}
	s.logger.Info("site: session cookies applied", "count", len(cookies))

	// Verify the session actually authenticates.
	home, err := s.fetchHTML(ctx, s.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("site: load home page: %w", err)
	}
	if !strings.Contains(strings.ToLower(home), strings.ToLower(s.cfg.LoginMarker)) {
		return fmt.Errorf("site: session cookies rejected, re-export the cookie file")
	}
	s.logger.Info("site: logged in via replayed session")
	return nil
}

// Stop shuts the browser down.
func (s *Site) Stop() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("site: browser close", "error", err)
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// OnlineNicks loads the online listing and returns the usable nicknames in
// page order.
func (s *Site) OnlineNicks(ctx context.Context) ([]string, error) {
	pageHTML, err := s.fetchHTML(ctx, s.cfg.BaseURL+s.cfg.OnlinePath)
	if err != nil {
		return nil, fmt.Errorf("site: online listing: %w", err)
	}
	nicks, err := s.extract.onlineNicks(pageHTML)
	if err != nil {
		return nil, fmt.Errorf("site: online listing: %w", err)
	}
	s.logger.Info("site: online users found", "count", len(nicks))
	return nicks, nil
}

// Scrape loads one profile page and returns its raw payload.
func (s *Site) Scrape(ctx context.Context, nick string) (profile.Raw, error) {
	pageURL := s.profileURL(nick)
	pageHTML, err := s.fetchHTML(ctx, pageURL)
	if err != nil {
		return profile.Raw{}, fmt.Errorf("site: profile %q: %w", nick, err)
	}
	raw, err := s.extract.profileRaw(pageHTML, nick, strings.TrimRight(pageURL, "/"))
	if err != nil {
		return profile.Raw{}, fmt.Errorf("site: profile %q: %w", nick, err)
	}
	return raw, nil
}

func (s *Site) profileURL(nick string) string {
	return s.cfg.BaseURL + fmt.Sprintf(s.cfg.ProfilePathFormat, url.PathEscape(nick))
}

// fetchHTML opens a stealth tab, navigates, waits for the load event, and
// returns the rendered DOM.
func (s *Site) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	if s.browser == nil {
		return "", fmt.Errorf("site: not started")
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return "", fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.logger.Warn("site: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("read DOM: %w", err)
	}
	return res.Value.Str(), nil
}
