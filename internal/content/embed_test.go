package content

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestEmbedImage(t *testing.T) {
	// 1x1 PNG header bytes are enough for content sniffing.
	pngBytes := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))

	tests := []struct {
		name  string
		input any
		check func(t *testing.T, got string)
	}{
		{
			name:  "data URI passes through",
			input: "data:image/png;base64,AAAA",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "data:image/png;base64,AAAA", got)
			},
		},
		{
			name:  "absolute URL passes through",
			input: "https://example.com/pic.jpg",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "https://example.com/pic.jpg", got)
			},
		},
		{
			name:  "relative path dropped",
			input: "uploads/pic.jpg",
			check: func(t *testing.T, got string) {
				assert.Empty(t, got)
			},
		},
		{
			name:  "reader re-encoded as data URI",
			input: bytes.NewReader(pngBytes),
			check: func(t *testing.T, got string) {
				assert.True(t, strings.HasPrefix(got, "data:image/png;base64,"), "got %q", got)
			},
		},
		{
			name:  "failing reader yields no image",
			input: failingReader{},
			check: func(t *testing.T, got string) {
				assert.Empty(t, got)
			},
		},
		{
			name:  "unsupported value dropped",
			input: 12345,
			check: func(t *testing.T, got string) {
				assert.Empty(t, got)
			},
		},
		{
			name:  "nil dropped",
			input: nil,
			check: func(t *testing.T, got string) {
				assert.Empty(t, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, EmbedImage(tt.input))
		})
	}
}
