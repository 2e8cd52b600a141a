package content

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxEmbeddedImageBytes caps how much of a file-like value is read
// when re-encoding it as a data URI. 20MB matches the request body
// limit upstream providers accept for inline images.
const maxEmbeddedImageBytes = 20 * 1024 * 1024

// EmbedImage canonicalizes an image reference into a self-contained
// string. Data URIs and absolute URLs pass through unchanged; readers
// are consumed fully and re-encoded as a data URI with a sniffed media
// type. Anything else yields "" (no image). It never panics and fails
// fast rather than erroring, so one bad input cannot abort a whole
// normalization pass.
func EmbedImage(v any) string {
	switch val := v.(type) {
	case string:
		if isDataURI(val) || isAbsoluteURL(val) {
			return val
		}
		return ""
	case []byte:
		return encodeDataURI(val)
	case io.Reader:
		data, err := io.ReadAll(io.LimitReader(val, maxEmbeddedImageBytes))
		if err != nil || len(data) == 0 {
			return ""
		}
		return encodeDataURI(data)
	default:
		return ""
	}
}

func isDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func encodeDataURI(data []byte) string {
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = DefaultImageMediaType
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}
