package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackingTokenRoundTrip(t *testing.T) {
	pixelID := NewTrackingPixelID()
	url := GenerateTrackingPixelURL("https://app.example.com/", pixelID)

	parts := strings.Split(strings.TrimPrefix(url, "https://app.example.com/track/open/"), "/")
	assert.Len(t, parts, 2)
	assert.Equal(t, pixelID, parts[0])
	assert.True(t, ValidTrackingToken(pixelID, parts[1]))
	assert.False(t, ValidTrackingToken(pixelID, "forged-token"))
	assert.False(t, ValidTrackingToken(NewTrackingPixelID(), parts[1]))
}

func TestGenerateClickTrackURLEscapesTarget(t *testing.T) {
	url := GenerateClickTrackURL("https://app.example.com", "pixel-1", "https://shop.test/item?a=1&b=2")

	assert.True(t, strings.HasPrefix(url, "https://app.example.com/track/click/pixel-1/"))
	assert.Contains(t, url, "url=https%3A%2F%2Fshop.test%2Fitem%3Fa%3D1%26b%3D2")
}

func TestInjectTrackingRewritesLinksAndAddsPixel(t *testing.T) {
	html := `<p>Hi</p><a href="https://shop.test/a">A</a><a href="https://shop.test/b">B</a>`
	out := InjectTracking(html, "https://app.example.com", "pixel-1", true, true)

	assert.NotContains(t, out, `href="https://shop.test/a"`)
	assert.NotContains(t, out, `href="https://shop.test/b"`)
	assert.Equal(t, 2, strings.Count(out, "/track/click/pixel-1/"))
	assert.Contains(t, out, "/track/open/pixel-1/")
	assert.Contains(t, out, `width="1" height="1"`)
}

func TestInjectTrackingRespectsToggles(t *testing.T) {
	html := `<a href="https://shop.test/a">A</a>`

	opensOnly := InjectTracking(html, "https://app.example.com", "pixel-1", true, false)
	assert.Contains(t, opensOnly, `href="https://shop.test/a"`)
	assert.Contains(t, opensOnly, "/track/open/pixel-1/")

	clicksOnly := InjectTracking(html, "https://app.example.com", "pixel-1", false, true)
	assert.NotContains(t, clicksOnly, "/track/open/pixel-1/")
	assert.Contains(t, clicksOnly, "/track/click/pixel-1/")
}
