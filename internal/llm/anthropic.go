package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/palaver-ai/chat-platform/internal/content"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// CompleteStream sends a streaming completion request.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = anthropic.MessageParam{
			Role:    anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F(toAnthropicBlocks(msg.Parts)),
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(req.System),
		}})
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	var full string
	var tokensIn, tokensOut int
	var stopReason string
	index := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeMessageStart:
			tokensIn = int(event.Message.Usage.InputTokens)
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			if d, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok && d.Type == "text_delta" {
				delta := d.Text
				full += delta
				if err := callback(delta, index); err != nil {
					return nil, err
				}
				index++
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			if d, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
				stopReason = string(d.StopReason)
			}
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:    full,
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// toAnthropicBlocks converts canonical parts into Anthropic content
// blocks. Data URI images become base64 sources; remote URLs are not
// accepted by the API and fall back to a text reference.
func toAnthropicBlocks(parts []content.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case content.PartTypeText:
			if p.Text != "" {
				blocks = append(blocks, textBlock(p.Text))
			}
		case content.PartTypeImage:
			mediaType, data, ok := splitDataURI(p.Image)
			if !ok {
				blocks = append(blocks, textBlock("Image: "+p.Image))
				continue
			}
			blocks = append(blocks, anthropic.ImageBlockParam{
				Type: anthropic.F(anthropic.ImageBlockParamTypeImage),
				Source: anthropic.F(anthropic.ImageBlockParamSource{
					Type:      anthropic.F(anthropic.ImageBlockParamSourceTypeBase64),
					MediaType: anthropic.F(anthropic.ImageBlockParamSourceMediaType(mediaType)),
					Data:      anthropic.F(data),
				}),
			})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, textBlock(""))
	}
	return blocks
}

func textBlock(text string) anthropic.TextBlockParam {
	return anthropic.TextBlockParam{
		Type: anthropic.F(anthropic.TextBlockParamTypeText),
		Text: anthropic.F(text),
	}
}

// splitDataURI splits "data:<media>;base64,<data>" into its media type
// and payload.
func splitDataURI(uri string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", false
	}
	rest := uri[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", "", false
	}
	return rest[:sep], rest[sep+len(";base64,"):], true
}
