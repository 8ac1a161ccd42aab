package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// NewTrackingPixelID generates the unique id embedded in a sent message's
// tracking pixel and stored on its EmailTracking row.
func NewTrackingPixelID() string {
	return uuid.New().String()
}

// GenerateTrackingPixelURL generates a tracking pixel URL for email opens
func GenerateTrackingPixelURL(baseURL, pixelID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", strings.TrimRight(baseURL, "/"), pixelID, trackingToken(pixelID))
}

// GenerateClickTrackURL generates a tracked URL for links
func GenerateClickTrackURL(baseURL, pixelID, originalURL string) string {
	encodedURL := url.QueryEscape(originalURL)
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s",
		strings.TrimRight(baseURL, "/"), pixelID, trackingToken(pixelID), encodedURL)
}

// InjectTracking rewrites links for click tracking and appends the open
// pixel to the HTML body.
func InjectTracking(htmlContent, baseURL, pixelID string, trackOpens, trackClicks bool) string {
	modified := htmlContent
	if trackClicks {
		modified = injectClickTracking(modified, baseURL, pixelID)
	}
	if trackOpens {
		pixelURL := GenerateTrackingPixelURL(baseURL, pixelID)
		modified += fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)
	}
	return modified
}

func injectClickTracking(html, baseURL, pixelID string) string {
	// Simplified scan; an HTML parser would handle edge cases better
	startTag := `<a href="`
	endTag := `"`
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := GenerateClickTrackURL(baseURL, pixelID, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}

// trackingToken derives a stable verification token from the pixel id so
// tracking endpoints can reject forged hits.
func trackingToken(pixelID string) string {
	hash := sha256.Sum256([]byte("dripcrm-track:" + pixelID))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}

// ValidTrackingToken reports whether token matches the pixel id.
func ValidTrackingToken(pixelID, token string) bool {
	return trackingToken(pixelID) == token
}
