package profile

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Raw is the loosely-typed payload handed over by a scraping collaborator.
// Every field is an optional string; the Normalizer owns all interpretation.
// Upstream scrapers only need to fill what they found on the page.
type Raw struct {
	Nick         string
	Image        string
	Tags         string
	LastPost     string
	LastPostTime string
	Friend       string
	City         string
	Gender       string
	Married      string
	Age          string
	Joined       string
	Followers    string
	Status       string
	Posts        string
	ProfileURL   string
	Intro        string
}

// Canonical date/time formats. DateTimeFormat matches the site's profile
// timestamps; DateFormat is used for date-only fields like the join date.
const (
	DateTimeFormat = "02-Jan-06 03:04 PM"
	DateFormat     = "02-Jan-06"
)

// PKT is the site-local zone. Rendered timestamps are PKT wall time
// regardless of the host zone, so audit rows read the same everywhere.
var PKT = time.FixedZone("PKT", 5*60*60)

// dateLayouts are the input shapes the site has been seen to produce.
var dateLayouts = []string{
	DateTimeFormat,
	DateFormat,
	"2-Jan-06 3:04 PM",
	"2-Jan-06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04",
	"2006-01-02",
}

// galleryPrefix is the raw image-hosting path; image links under it are
// rewritten to the canonical comments/image form.
const (
	galleryPrefix   = "/user-uploads/photos/gallery/"
	canonicalPrefix = "/comments/image/"
)

// Normalizer turns Raw payloads into canonical Profiles. It has no state
// beyond its symbol table and logger; Normalize never fails, unparsable
// values degrade to empty or unknown.
type Normalizer struct {
	symbols Symbols
	logger  *slog.Logger
}

// NewNormalizer creates a Normalizer with the given symbol table.
func NewNormalizer(symbols Symbols, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{symbols: symbols, logger: logger}
}

// Symbols returns the normalizer's symbol table.
func (n *Normalizer) Symbols() Symbols { return n.symbols }

// Normalize canonicalizes a raw scrape payload. The caller stamps Source and
// ScrapedAt afterwards; they describe the sighting, not the page.
func (n *Normalizer) Normalize(raw Raw) Profile {
	return Profile{
		Nick:         Key(raw.Nick),
		ImageURL:     n.rewriteImageURL(raw.Image),
		Tags:         strings.TrimSpace(raw.Tags),
		LastPost:     strings.TrimSpace(raw.LastPost),
		LastPostTime: n.normalizeDateTime(raw.LastPostTime),
		Friend:       parseFlag(raw.Friend),
		City:         strings.TrimSpace(raw.City),
		Gender:       n.symbols.ParseGender(raw.Gender),
		Married:      n.symbols.ParseMarital(raw.Married),
		Age:          parseCount(raw.Age),
		Joined:       n.normalizeDate(raw.Joined),
		Followers:    parseCount(raw.Followers),
		Verified:     n.symbols.ParseStatus(raw.Status),
		Posts:        parseCount(raw.Posts),
		ProfileURL:   strings.TrimRight(strings.TrimSpace(raw.ProfileURL), "/"),
		Intro:        strings.TrimSpace(raw.Intro),
	}
}

// normalizeDateTime parses a site timestamp and re-renders it in
// DateTimeFormat. Unparsable input fails soft to empty.
func (n *Normalizer) normalizeDateTime(raw string) string {
	t, ok := parseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(DateTimeFormat)
}

// normalizeDate is normalizeDateTime for date-only fields.
func (n *Normalizer) normalizeDate(raw string) string {
	t, ok := parseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(DateFormat)
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// rewriteImageURL maps the raw gallery form of the site's image host to the
// canonical comments/image form. Anything that does not parse, or does not
// point at the gallery path, passes through unchanged.
func (n *Normalizer) rewriteImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		n.logger.Warn("normalize: malformed image URL left as-is", "url", raw, "error", err)
		return raw
	}
	if !strings.HasPrefix(u.Path, galleryPrefix) {
		return raw
	}
	u.Path = canonicalPrefix + strings.TrimPrefix(u.Path, galleryPrefix)
	return u.String()
}

// parseCount reads an integer that may carry thousands separators or
// surrounding text ("1,204 followers"). Unparsable input degrades to 0.
func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	v, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return v
}

func parseFlag(raw string) bool {
	switch normWord(raw) {
	case "yes", "y", "true", "friend", "friends", "1":
		return true
	default:
		return false
	}
}
