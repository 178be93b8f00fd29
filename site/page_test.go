package site

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseDoc(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

const onlineHTML = `<html><body>
<ul>
	<li class="mbl cl sp"><b>Alice_99</b></li>
	<li class="mbl"><b>bob</b></li>
	<li class="mbl"><b>BOB</b></li>
	<li class="mbl"><b>..</b></li>
	<li class="mbl"><b>12345</b></li>
	<li class="other"><b>not-a-user</b></li>
</ul>
</body></html>`

const profileHTML = `<html><body>
<img class="dp" src="https://cdn.example.pk/user-uploads/photos/gallery/alice.jpg">
<div class="tags">poetry, travel</div>
<a class="last-post" href="/posts/123">latest <time>02-Jan-24 03:15 PM</time></a>
<span class="friend-badge"></span>
<div class="intro"><p>Hi, I write <b>poetry</b>.</p><script>alert(1)</script></div>
<ul>
	<li class="profile-attr"><b>City:</b> Lahore</li>
	<li class="profile-attr"><b>Gender:</b> Female</li>
	<li class="profile-attr"><b>Age:</b> 24</li>
	<li class="profile-attr"><b>Followers:</b> 1,204</li>
	<li class="profile-attr"><b>Shoe size:</b> 38</li>
</ul>
</body></html>`

func TestOnlineNicks(t *testing.T) {
	e := newExtractor(Selectors{})

	nicks, err := e.onlineNicks(onlineHTML)
	if err != nil {
		t.Fatal(err)
	}

	// Too-short and all-digit entries are dropped, case duplicates
	// collapse, and only the listing's own elements match.
	want := []string{"Alice_99", "bob"}
	if len(nicks) != len(want) {
		t.Fatalf("nicks: got %v, want %v", nicks, want)
	}
	for i := range want {
		if nicks[i] != want[i] {
			t.Fatalf("nicks: got %v, want %v", nicks, want)
		}
	}
}

func TestProfileRaw(t *testing.T) {
	e := newExtractor(Selectors{})

	raw, err := e.profileRaw(profileHTML, "Alice_99", "https://example.pk/users/Alice_99")
	if err != nil {
		t.Fatal(err)
	}

	if raw.Nick != "Alice_99" {
		t.Fatalf("nick: got %q", raw.Nick)
	}
	if raw.Image != "https://cdn.example.pk/user-uploads/photos/gallery/alice.jpg" {
		t.Fatalf("image: got %q", raw.Image)
	}
	if raw.Tags != "poetry, travel" {
		t.Fatalf("tags: got %q", raw.Tags)
	}
	if raw.LastPost != "/posts/123" {
		t.Fatalf("last post: got %q", raw.LastPost)
	}
	if raw.LastPostTime != "02-Jan-24 03:15 PM" {
		t.Fatalf("last post time: got %q", raw.LastPostTime)
	}
	if raw.Friend != "yes" {
		t.Fatalf("friend: got %q", raw.Friend)
	}
	if raw.City != "Lahore" || raw.Gender != "Female" || raw.Age != "24" {
		t.Fatalf("attrs: city=%q gender=%q age=%q", raw.City, raw.Gender, raw.Age)
	}
	if raw.Followers != "1,204" {
		t.Fatalf("followers: got %q", raw.Followers)
	}
}

func TestProfileRaw_IntroIsSanitizedMarkdown(t *testing.T) {
	e := newExtractor(Selectors{})

	raw, err := e.profileRaw(profileHTML, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw.Intro, "**poetry**") {
		t.Fatalf("intro not markdown: %q", raw.Intro)
	}
	if strings.Contains(raw.Intro, "alert") {
		t.Fatalf("script content survived sanitization: %q", raw.Intro)
	}
}

func TestProfileRaw_MissingFieldsStayEmpty(t *testing.T) {
	e := newExtractor(Selectors{})

	raw, err := e.profileRaw("<html><body><p>suspended</p></body></html>", "ghost", "")
	if err != nil {
		t.Fatal(err)
	}
	if raw.Image != "" || raw.City != "" || raw.Friend != "" || raw.Intro != "" {
		t.Fatalf("got %+v", raw)
	}
}

func TestUsableNick(t *testing.T) {
	cases := []struct {
		nick string
		want bool
	}{
		{"alice", true},
		{"ab1", true},
		{"ab", false},
		{"123", false},
		{"...", false},
		{"", false},
	}
	for _, c := range cases {
		if got := usableNick(c.nick); got != c.want {
			t.Errorf("usableNick(%q): got %v, want %v", c.nick, got, c.want)
		}
	}
}

func TestQuerySelector_Subset(t *testing.T) {
	const doc = `<div id="top" class="a b"><p class="x">one</p><p>two</p>
<span data-k="v">three</span></div>`

	root, err := parseDoc(doc)
	if err != nil {
		t.Fatal(err)
	}

	if n := querySelector(root, "div.a.b"); n == nil {
		t.Fatal("multi-class selector did not match")
	}
	if n := querySelector(root, "#top"); n == nil {
		t.Fatal("id selector did not match")
	}
	if n := querySelector(root, `span[data-k=v]`); n == nil {
		t.Fatal("attr selector did not match")
	}
	if got := len(querySelectorAll(root, "div p")); got != 2 {
		t.Fatalf("descendants: got %d, want 2", got)
	}
	if n := querySelector(root, "p.x"); collectText(n) != "one" {
		t.Fatalf("got %q", collectText(n))
	}
}
