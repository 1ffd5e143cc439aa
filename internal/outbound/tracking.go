package outbound

import (
	"encoding/base64"
	"regexp"
	"strings"
)

var linkRe = regexp.MustCompile(`href=["'](https?://[^"']+)["']`)

// rewriteClickLinks rewrites every http(s) href in html to route through
// {base}/t/c/{token}?u={unpadded-urlsafe-base64(url)}.
func rewriteClickLinks(html, base, token string) string {
	return linkRe.ReplaceAllStringFunc(html, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		orig := parts[1]
		if strings.Contains(orig, "/t/c/") || strings.Contains(orig, "/t/o/") {
			return match
		}
		encoded := base64.RawURLEncoding.EncodeToString([]byte(orig))
		return `href="` + base + "/t/c/" + token + "?u=" + encoded + `"`
	})
}

// injectOpenPixel appends a 1x1 transparent tracking pixel immediately
// before </body> if present, otherwise at the end of html.
func injectOpenPixel(html, base, token string) string {
	pixel := `<img src="` + base + "/t/o/" + token + `" width="1" height="1" alt="" style="display:none;width:1px;height:1px" />`
	if idx := strings.LastIndex(strings.ToLower(html), "</body>"); idx >= 0 {
		return html[:idx] + pixel + html[idx:]
	}
	return html + pixel
}
