package content

import (
	"encoding/json"
	"strings"
)

// Normalize converts a raw JSON content value into the canonical part
// list. It is total: unrecognized shapes degrade to a single empty
// text part rather than erroring.
//
// Accepted shapes, in priority order:
//  1. a JSON string - one text part (a string that lexically opens
//     with '[' or '{' is first retried as an encoded part array);
//  2. an array of tagged objects, classified by their type/kind
//     discriminator;
//  3. anything else - empty text part.
func Normalize(raw json.RawMessage) []Part {
	if len(raw) == 0 {
		return []Part{TextPart("")}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NormalizeString(s)
	}

	var objs []map[string]any
	if err := json.Unmarshal(raw, &objs); err == nil {
		return ensureLeadingText(classifyParts(objs), "")
	}

	return []Part{TextPart("")}
}

// NormalizeString normalizes a bare string content value. Strings that
// look like JSON are speculatively parsed as an encoded part array;
// parse failure treats the string as literal text.
func NormalizeString(s string) []Part {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if parts, ok := decodeJSON(trimmed); ok {
			return ensureLeadingText(parts, trimmed)
		}
	}
	return []Part{TextPart(trimmed)}
}

// NormalizeValue normalizes an already-decoded content value (string,
// []any of tagged maps, or a canonical part list).
func NormalizeValue(v any) []Part {
	switch val := v.(type) {
	case nil:
		return []Part{TextPart("")}
	case string:
		return NormalizeString(val)
	case []Part:
		return ensureLeadingText(append([]Part(nil), val...), "")
	case []map[string]any:
		return ensureLeadingText(classifyParts(val), "")
	case []any:
		objs := make([]map[string]any, 0, len(val))
		for _, el := range val {
			if m, ok := el.(map[string]any); ok {
				objs = append(objs, m)
			}
		}
		return ensureLeadingText(classifyParts(objs), "")
	default:
		return []Part{TextPart("")}
	}
}

// imageFields is the fixed fallback order for reading an image
// reference out of a tagged object: url-like fields before embedded
// blobs.
var imageFields = []string{"url", "image", "data", "src"}

// classifyParts maps tagged objects onto canonical parts. Unknown
// discriminators are silently skipped; empty text parts are dropped
// here and re-inserted by ensureLeadingText when nothing survives.
func classifyParts(objs []map[string]any) []Part {
	var parts []Part
	for _, obj := range objs {
		kind, _ := obj["type"].(string)
		if kind == "" {
			kind, _ = obj["kind"].(string)
		}

		switch kind {
		case "text":
			text, _ := obj["text"].(string)
			if text == "" {
				text, _ = obj["value"].(string)
			}
			text = strings.TrimSpace(text)
			if text != "" {
				parts = append(parts, TextPart(text))
			}
		case "image", "image_url", "file":
			if ref := imageRef(obj); ref != "" {
				parts = append(parts, ImagePart(ref))
			}
		}
	}
	return parts
}

func imageRef(obj map[string]any) string {
	for _, field := range imageFields {
		v, ok := obj[field]
		if !ok {
			continue
		}
		// OpenAI-style nesting: {"type":"image_url","image_url":{"url":...}}.
		if m, ok := v.(map[string]any); ok {
			if inner, ok := m["url"].(string); ok && inner != "" {
				if ref := EmbedImage(inner); ref != "" {
					return ref
				}
			}
			continue
		}
		if ref := EmbedImage(v); ref != "" {
			return ref
		}
	}
	if m, ok := obj["image_url"].(map[string]any); ok {
		if inner, ok := m["url"].(string); ok {
			return EmbedImage(inner)
		}
	}
	return ""
}

// ensureLeadingText enforces the canonical invariant that every part
// list opens with a text part. When the classified list is empty or
// image-only, a text part carrying the original (possibly empty) text
// is unshifted to the front. Existing order is otherwise preserved.
func ensureLeadingText(parts []Part, original string) []Part {
	for _, p := range parts {
		if p.Type == PartTypeText {
			return parts
		}
	}
	text := ""
	if !strings.HasPrefix(strings.TrimSpace(original), "[") &&
		!strings.HasPrefix(strings.TrimSpace(original), "{") {
		text = strings.TrimSpace(original)
	}
	return append([]Part{TextPart(text)}, parts...)
}
