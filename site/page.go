package site

import (
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"profilewatch/profile"
)

// Selectors maps the site's markup onto profile fields. Injected as
// configuration so a markup change is a config edit, not a code change.
type Selectors struct {
	// OnlineNick matches the nickname elements on the online listing.
	OnlineNick string `yaml:"online_nick"`
	// Photo matches the profile photo element (src attribute).
	Photo string `yaml:"photo"`
	// Tags matches the free-text tag container.
	Tags string `yaml:"tags"`
	// LastPost matches the latest-post link (href attribute).
	LastPost string `yaml:"last_post"`
	// LastPostTime matches the latest-post timestamp element.
	LastPostTime string `yaml:"last_post_time"`
	// Intro matches the bio container; its inner HTML is converted to
	// markdown.
	Intro string `yaml:"intro"`
	// FieldRow matches the labelled attribute rows ("City: Lahore").
	FieldRow string `yaml:"field_row"`
	// Friend matches the element present only on friends' profiles.
	Friend string `yaml:"friend"`
}

func (s *Selectors) defaults() {
	if s.OnlineNick == "" {
		s.OnlineNick = "li.mbl b"
	}
	if s.Photo == "" {
		s.Photo = "img.dp"
	}
	if s.Tags == "" {
		s.Tags = "div.tags"
	}
	if s.LastPost == "" {
		s.LastPost = "a.last-post"
	}
	if s.LastPostTime == "" {
		s.LastPostTime = "a.last-post time"
	}
	if s.Intro == "" {
		s.Intro = "div.intro"
	}
	if s.FieldRow == "" {
		s.FieldRow = "li.profile-attr"
	}
	if s.Friend == "" {
		s.Friend = "span.friend-badge"
	}
}

// fieldLabels maps the labels of the profile attribute rows onto Raw
// fields, matched case-insensitively without the trailing colon.
var fieldLabels = map[string]func(*profile.Raw, string){
	"city":      func(r *profile.Raw, v string) { r.City = v },
	"gender":    func(r *profile.Raw, v string) { r.Gender = v },
	"married":   func(r *profile.Raw, v string) { r.Married = v },
	"age":       func(r *profile.Raw, v string) { r.Age = v },
	"joined":    func(r *profile.Raw, v string) { r.Joined = v },
	"followers": func(r *profile.Raw, v string) { r.Followers = v },
	"status":    func(r *profile.Raw, v string) { r.Status = v },
	"posts":     func(r *profile.Raw, v string) { r.Posts = v },
}

// extractor turns fetched page HTML into the Raw payload the normalizer
// accepts. Free text is sanitized, the bio is converted to markdown.
type extractor struct {
	sel       Selectors
	sanitizer *bluemonday.Policy
}

func newExtractor(sel Selectors) *extractor {
	sel.defaults()
	return &extractor{
		sel:       sel,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// onlineNicks extracts nicknames from the online listing. A usable nick has
// at least three runes and at least one letter; everything else on that
// page is decoration.
func (e *extractor) onlineNicks(pageHTML string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}

	var nicks []string
	seen := make(map[string]bool)
	for _, n := range querySelectorAll(doc, e.sel.OnlineNick) {
		nick := strings.TrimSpace(collectText(n))
		if !usableNick(nick) {
			continue
		}
		key := profile.Key(nick)
		if seen[key] {
			continue
		}
		seen[key] = true
		nicks = append(nicks, nick)
	}
	return nicks, nil
}

// profileRaw extracts one profile page into a Raw payload. Missing fields
// stay empty; extraction never fails on shape, only on unparsable HTML.
func (e *extractor) profileRaw(pageHTML, nick, pageURL string) (profile.Raw, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return profile.Raw{}, err
	}

	raw := profile.Raw{
		Nick:       nick,
		ProfileURL: pageURL,
	}

	if n := querySelector(doc, e.sel.Photo); n != nil {
		raw.Image = getAttr(n, "src")
	}
	if n := querySelector(doc, e.sel.Tags); n != nil {
		raw.Tags = e.cleanText(collectText(n))
	}
	if n := querySelector(doc, e.sel.LastPost); n != nil {
		raw.LastPost = getAttr(n, "href")
	}
	if n := querySelector(doc, e.sel.LastPostTime); n != nil {
		raw.LastPostTime = collectText(n)
	}
	if n := querySelector(doc, e.sel.Friend); n != nil {
		raw.Friend = "yes"
	}
	if n := querySelector(doc, e.sel.Intro); n != nil {
		raw.Intro = e.introMarkdown(n)
	}

	for _, row := range querySelectorAll(doc, e.sel.FieldRow) {
		label, value := splitFieldRow(row)
		if set, ok := fieldLabels[label]; ok {
			set(&raw, value)
		}
	}

	return raw, nil
}

// introMarkdown sanitizes the bio fragment and converts it to markdown, so
// whatever markup users put in their bios survives as readable text.
func (e *extractor) introMarkdown(n *html.Node) string {
	fragment := e.sanitizer.Sanitize(innerHTML(n))
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		// Fall back to plain text rather than dropping the bio.
		return collectText(n)
	}
	return strings.TrimSpace(md)
}

func (e *extractor) cleanText(s string) string {
	return strings.TrimSpace(e.sanitizer.Sanitize(s))
}

// splitFieldRow splits "<b>City:</b> Lahore" style rows into label and
// value. The label is the first bold child; the value is the row's text
// with the label removed.
func splitFieldRow(row *html.Node) (label, value string) {
	b := querySelector(row, "b")
	if b == nil {
		return "", ""
	}
	label = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(collectText(b)), ":"))
	full := collectText(row)
	value = strings.TrimSpace(strings.TrimPrefix(full, collectText(b)))
	return label, value
}

func usableNick(nick string) bool {
	if len([]rune(nick)) < 3 {
		return false
	}
	for _, r := range nick {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
