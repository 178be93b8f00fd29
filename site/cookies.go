package site

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// parseCookieFile parses Netscape cookies.txt content: one tab-separated
// line per cookie (domain, include-subdomains flag, path, secure flag,
// expiry, name, value), comments starting with '#'. The session is exported
// from a real browser once and replayed here, which is what gets us past
// the site's bot challenge without a scripted login.
func parseCookieFile(content string) ([]*proto.NetworkCookieParam, error) {
	var cookies []*proto.NetworkCookieParam

	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		cookie := &proto.NetworkCookieParam{
			Domain: parts[0],
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "true"),
			Name:   parts[5],
			Value:  parts[6],
		}
		if exp, err := strconv.ParseInt(parts[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = proto.TimeSinceEpoch(exp)
		}
		cookies = append(cookies, cookie)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("site: scan cookie file: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("site: cookie file holds no cookies")
	}
	return cookies, nil
}
