// Package streamclient consumes the chat platform's newline-delimited
// streaming wire protocol and maintains a client-side transcript.
package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// linePrefix marks payload lines; everything else on the stream is
// ignored.
const linePrefix = "data: "

// conversationIDHeader carries the resolved conversation id.
const conversationIDHeader = "X-Conversation-ID"

// ErrStreamTruncated is returned when the stream closes before a
// completion event; any partial text is discarded.
var ErrStreamTruncated = errors.New("stream closed before completion")

// ErrRequestInFlight is returned when a submission is rejected because
// another one is still pending on the same transcript.
var ErrRequestInFlight = errors.New("a chat request is already in flight")

// Part mirrors the canonical content part on the wire.
type Part struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Turn is one submitted message.
type Turn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ChatRequest is the chat endpoint request body.
type ChatRequest struct {
	Messages       []Turn  `json:"messages"`
	ConversationID *string `json:"conversationId"`
}

// ChatResult is the reassembled outcome of one streamed exchange.
type ChatResult struct {
	ConversationID string
	Text           string
}

type streamEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client talks to the chat platform's streaming endpoint.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates a client for the given base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

// Chat submits a request and reassembles the streamed answer, calling
// onDelta for every text fragment in arrival order. Cancel the context
// to abort the read mid-stream. The response body is released on every
// exit path.
func (c *Client) Chat(ctx context.Context, req ChatRequest, onDelta func(delta string)) (*ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeHTTPError(resp)
	}

	result := &ChatResult{
		ConversationID: resp.Header.Get(conversationIDHeader),
	}

	var assembled strings.Builder
	completed := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, linePrefix) {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(line[len(linePrefix):]), &event); err != nil {
			// Tolerant parsing: garbage lines are skipped.
			continue
		}

		switch event.Type {
		case "delta":
			assembled.WriteString(event.Text)
			if onDelta != nil {
				onDelta(event.Text)
			}
		case "error":
			return nil, fmt.Errorf("stream error: %s", event.Message)
		case "done":
			completed = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrStreamTruncated
	}

	result.Text = assembled.String()
	return result, nil
}

// Messages fetches the authoritative transcript for a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]TranscriptMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/api/v1/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeHTTPError(resp)
	}

	var payload struct {
		Messages []struct {
			ID    string `json:"id"`
			Role  string `json:"role"`
			Parts []Part `json:"parts"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	messages := make([]TranscriptMessage, len(payload.Messages))
	for i, m := range payload.Messages {
		messages[i] = TranscriptMessage{
			ID:    m.ID,
			Role:  m.Role,
			Parts: m.Parts,
		}
	}
	return messages, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func decodeHTTPError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// EmbedAttachment re-encodes an attachment as a self-contained data
// URI so it can travel inside a turn. Returns "" for unreadable input.
func EmbedAttachment(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}

// Composer accumulates a draft turn: text plus image attachments. It
// is explicit state handed to Submit, not recovered out-of-band.
type Composer struct {
	text        string
	attachments []string
}

// SetText sets the draft text.
func (c *Composer) SetText(text string) {
	c.text = text
}

// AddAttachment embeds an attachment into the draft. Unreadable
// attachments are dropped.
func (c *Composer) AddAttachment(r io.Reader) {
	if ref := EmbedAttachment(r); ref != "" {
		c.attachments = append(c.attachments, ref)
	}
}

// AddAttachmentURL attaches an already-resolved image reference.
func (c *Composer) AddAttachmentURL(url string) {
	if strings.HasPrefix(url, "data:") || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		c.attachments = append(c.attachments, url)
	}
}

// Turn builds the user turn in canonical form: leading text part
// (possibly empty), then attachments in order.
func (c *Composer) Turn() Turn {
	parts := make([]Part, 0, len(c.attachments)+1)
	parts = append(parts, Part{Type: "text", Text: c.text})
	for _, ref := range c.attachments {
		parts = append(parts, Part{Type: "image", Image: ref})
	}
	return Turn{Role: "user", Parts: parts}
}

// Reset clears the draft after a submission.
func (c *Composer) Reset() {
	c.text = ""
	c.attachments = nil
}
