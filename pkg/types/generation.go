// Package types defines the canonical request and response shapes shared by
// the API layer and the provider adapters. Inbound content is normalized once
// here, so every adapter receives the same shape.
package types

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Conversation roles in the canonical format. Providers that use a different
// vocabulary (e.g. "assistant") rename during request translation.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Part is a single piece of turn content. Only text parts are supported.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Turn is one conversational turn: a role plus its content parts.
type Turn struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Text concatenates the text of all parts.
func (t Turn) Text() string {
	var out string
	for _, p := range t.Parts {
		out += p.Text
	}
	return out
}

// Contents is the union type for the "contents" field. Clients may send a
// turn array, a bare turn object, or any other JSON value; everything is
// normalized into a turn list on unmarshal.
type Contents struct {
	Turns []Turn
}

// UnmarshalJSON implements the normalization rules:
// an array of turns is taken as-is, a bare object carrying "parts" is wrapped
// into a one-element list, and anything else becomes a single user turn whose
// text is the serialized input.
func (c *Contents) UnmarshalJSON(data []byte) error {
	c.Turns = nil

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var turns []Turn
	if err := json.Unmarshal(trimmed, &turns); err == nil {
		c.Turns = turns
		return nil
	}

	var probe struct {
		Parts []Part `json:"parts"`
	}
	if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Parts != nil {
		var turn Turn
		if err := json.Unmarshal(trimmed, &turn); err != nil {
			return fmt.Errorf("unmarshal turn: %w", err)
		}
		c.Turns = []Turn{turn}
		return nil
	}

	c.Turns = []Turn{{Role: RoleUser, Parts: []Part{{Text: string(trimmed)}}}}
	return nil
}

// MarshalJSON emits the normalized turn list.
func (c Contents) MarshalJSON() ([]byte, error) {
	if c.Turns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Turns)
}

// Validate checks that at least one non-empty turn is present.
func (c *Contents) Validate() error {
	if len(c.Turns) == 0 {
		return fmt.Errorf("contents is required")
	}
	for i, t := range c.Turns {
		if len(t.Parts) == 0 {
			return fmt.Errorf("contents[%d] has no parts", i)
		}
	}
	return nil
}

// UserTurn builds a single user turn with one text part.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// UserText builds a Contents with a single user turn. Used by internal
// callers that synthesize prompts.
func UserText(text string) Contents {
	return Contents{Turns: []Turn{UserTurn(text)}}
}

// GenerationConfig carries generation parameters. Field names follow the
// inbound wire format; adapters translate to each backend's vocabulary.
type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
	Tools           json.RawMessage `json:"tools,omitempty"`
}

// GenerationRequest is the provider-agnostic generation request. It is built
// once per HTTP call and discarded after the response is sent.
type GenerationRequest struct {
	Model    string            `json:"model"`
	Provider string            `json:"provider,omitempty"`
	Contents Contents          `json:"contents"`
	Config   *GenerationConfig `json:"config,omitempty"`
}

// Stream reports whether streaming delivery was requested.
func (r *GenerationRequest) Stream() bool {
	return r.Config != nil && r.Config.Stream
}

// Usage is the normalized token accounting triple. Adapters must fill it
// from provider-specific field names, defaulting to zeros when the backend
// omits usage metadata.
type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// GenerateResult is the normalized provider response.
type GenerateResult struct {
	Text  string          `json:"text"`
	Raw   json.RawMessage `json:"raw"`
	Usage Usage           `json:"usage"`
}

// StreamChunk is one incremental piece of a streaming response. Usage is
// non-nil only on chunks that carry final token accounting.
type StreamChunk struct {
	Text         string `json:"text"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Source describes one retrieved document backing an assistant answer.
type Source struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Preview string `json:"preview"`
}
