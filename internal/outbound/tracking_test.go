package outbound

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteClickLinksMatchesUnpaddedScenario(t *testing.T) {
	html := `<a href="https://x.example/page">click</a>`
	got := rewriteClickLinks(html, "https://t.example", "T")
	require.Contains(t, got, `href="https://t.example/t/c/T?u=aHR0cHM6Ly94LmV4YW1wbGUvcGFnZQ"`)
}

func TestRewriteClickLinksSkipsAlreadyWrapped(t *testing.T) {
	html := `<a href="https://t.example/t/c/T?u=xyz">click</a>`
	got := rewriteClickLinks(html, "https://t.example", "T2")
	require.Equal(t, html, got)
}

func TestInjectOpenPixelBeforeClosingBody(t *testing.T) {
	html := `<html><body>hi</body></html>`
	got := injectOpenPixel(html, "https://t.example", "T")
	require.Contains(t, got, `src="https://t.example/t/o/T"`)
	require.Less(t, indexOf(got, "src=\"https://t.example/t/o/T\""), indexOf(got, "</body>"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
