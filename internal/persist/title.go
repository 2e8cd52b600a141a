package persist

import (
	"github.com/palaver-ai/chat-platform/internal/content"
)

// titleMaxLen caps the display title shown in conversation lists.
const titleMaxLen = 50

// DefaultTitle is used when the first turn carries no leading text.
const DefaultTitle = "New conversation"

// DeriveTitle derives a conversation title from the first user turn:
// the first 50 characters of its leading text part, or the placeholder
// when none is present.
func DeriveTitle(parts []content.Part) string {
	for _, p := range parts {
		if p.Type != content.PartTypeText {
			continue
		}
		if p.Text == "" {
			break
		}
		runes := []rune(p.Text)
		if len(runes) > titleMaxLen {
			return string(runes[:titleMaxLen])
		}
		return p.Text
	}
	return DefaultTitle
}
