package notify

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/store"
)

const (
	// announcementSeparator splits an announcement body into title and detail.
	announcementSeparator = "|||ANNOUNCEMENT_SEPARATOR|||"
	announcementGlyph     = "📢"

	// previewLimit caps the preview segment of a notification body.
	previewLimit = 50
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// renderBody builds the notification body for one message. The title is the
// room name and is handled by the caller (the reply override changes both).
func renderBody(view *core.MessageView) string {
	sender := view.SenderName

	switch view.Type {
	case store.MessageTypeMedia:
		if caption := stripHTML(view.Body); caption != "" {
			return sender + ": " + preview(caption)
		}
		if n := len(view.MediaIDs); n > 0 {
			return fmt.Sprintf("%s shared %d %s", sender, n, pluralize("photo", n))
		}
		return sender + " shared media"
	case store.MessageTypePoll:
		return sender + " shared a poll"
	case store.MessageTypeTable:
		return sender + " shared a table"
	case store.MessageTypeAnnouncement:
		title, ok := announcementTitle(view.Body)
		if !ok {
			return sender + " shared an announcement"
		}
		return sender + ": " + announcementGlyph + " " + preview(stripHTML(title))
	default:
		return sender + ": " + preview(stripHTML(view.Body))
	}
}

// announcementTitle extracts the leading title segment of a delimited
// announcement encoding. Returns false when the delimiter is absent.
func announcementTitle(body string) (string, bool) {
	idx := strings.Index(body, announcementSeparator)
	if idx < 0 {
		return "", false
	}
	return body[:idx], true
}

// stripHTML removes tags and decodes entities for plain-text previews.
func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// preview truncates to the first previewLimit runes with an ellipsis.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "…"
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
