// Package content defines the canonical multimodal message content
// representation and the normalization of every accepted input shape
// into it.
package content

import (
	"encoding/json"
	"strings"
)

// PartType discriminates the content part union.
type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
)

// DefaultImageMediaType is assumed when an image reference carries no
// recognizable data URI prefix.
const DefaultImageMediaType = "image/png"

// Part is one typed fragment of a message's content. Exactly one of
// Text or Image is meaningful, selected by Type.
type Part struct {
	Type  PartType `json:"type"`
	Text  string   `json:"text,omitempty"`
	Image string   `json:"image,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ImagePart builds an image part from a data URI or URL.
func ImagePart(ref string) Part {
	return Part{Type: PartTypeImage, Image: ref}
}

// MediaType derives the media type of an image part from its data URI
// prefix. Non-data-URI references and text parts yield the default.
func (p Part) MediaType() string {
	if p.Type != PartTypeImage {
		return ""
	}
	if strings.HasPrefix(p.Image, "data:") {
		rest := p.Image[len("data:"):]
		if i := strings.Index(rest, ";"); i > 0 {
			return rest[:i]
		}
	}
	return DefaultImageMediaType
}

// HasImage reports whether any part in the list is an image.
func HasImage(parts []Part) bool {
	for _, p := range parts {
		if p.Type == PartTypeImage {
			return true
		}
	}
	return false
}

// JoinText concatenates the text of all text parts in order.
func JoinText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Encode serializes a canonical part list to its stored wire form.
// A list holding exactly one text part collapses to the bare string;
// anything else becomes a JSON array of parts.
func Encode(parts []Part) string {
	if len(parts) == 1 && parts[0].Type == PartTypeText {
		return parts[0].Text
	}
	data, err := json.Marshal(parts)
	if err != nil {
		// Parts hold only strings; marshaling cannot realistically
		// fail, but degrade to the joined text if it ever does.
		return JoinText(parts)
	}
	return string(data)
}

// Decode expands a stored wire form back into the canonical part list.
// This is the single place where the "looks like JSON" sniff happens:
// a stored value opening with '[' or '{' is speculatively parsed, and
// parse failure falls back to literal text.
func Decode(stored string) []Part {
	trimmed := strings.TrimSpace(stored)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if parts, ok := decodeJSON(trimmed); ok {
			return ensureLeadingText(parts, stored)
		}
	}
	return []Part{TextPart(stored)}
}

func decodeJSON(s string) ([]Part, bool) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		// A single object is accepted and treated as a one-element
		// array for symmetry with the normalizer.
		var one map[string]any
		if err := json.Unmarshal([]byte(s), &one); err != nil {
			return nil, false
		}
		raw = []map[string]any{one}
	}
	return classifyParts(raw), true
}
