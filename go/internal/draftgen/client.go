package draftgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic API for program drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates a drafting client with the given API key and model.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for program drafting.
func buildPrompt(rawText string) (system string, user string) {
	system = `You are an expert event coordinator. You turn raw notes into a structured event program. Return ONLY a JSON object with these fields:
- "title": the event title
- "subtitle": a short subtitle, or an empty string
- "date": the event date as YYYY-MM-DD, or an empty string if unknown
- "startTime": the start time as 24-hour HH:MM, "09:00" if unknown
- "endTime": the target finish time as 24-hour HH:MM, or an empty string
- "slots": an array of sessions in schedule order, each with:
  - "title": session title
  - "speaker": speaker name, or an empty string
  - "durationMinutes": length in minutes, 30 if unknown
  - "type": one of "TALK", "BREAK", "KEYNOTE", "PANEL"
  - "details": any extra notes, or an empty string

Rules:
- Keep sessions in the order they appear in the notes
- Coffee, lunch and similar pauses are "BREAK"
- Do not invent sessions that are not in the notes
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Draft a program from these notes:\n\n")
	sb.WriteString(rawText)
	user = sb.String()
	return
}

// Generate sends the notes to the model and parses the draft it returns.
func (c *Client) Generate(ctx context.Context, rawText string) (*Draft, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, ErrEmptyInput
	}
	systemPrompt, userPrompt := buildPrompt(rawText)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return ParseDraft(text)
}

// ParseDraft decodes a model reply, tolerating markdown fencing around the JSON.
func ParseDraft(text string) (*Draft, error) {
	text = stripFencing(text)

	var d Draft
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if d.Title == "" && len(d.Slots) == 0 {
		return nil, fmt.Errorf("draft has neither title nor slots")
	}
	return &d, nil
}

func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
