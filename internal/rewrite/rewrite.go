// Package rewrite turns extracted article text into a narrated podcast
// script using an OpenAI-compatible chat completions endpoint. The rewrite
// step is optional; callers fall back to the raw text when it fails.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Script length bounds. The synthesis provider caps input at 3000
// characters, so the prompt asks for a script under that limit and the
// client enforces it by truncating at a paragraph or sentence boundary.
const (
	scriptLimit    = 3000
	truncateAt     = 2900
	minBreakPoint  = 2500
	truncationNote = "\n\n[Note: Script truncated to fit within 3000 character limit]"
)

// ErrEmptyText is returned when there is nothing to rewrite.
var ErrEmptyText = errors.New("text is required")

// ErrNoChoices is returned on a well-formed response with no completion.
var ErrNoChoices = errors.New("no response content returned")

// Request describes one rewrite call.
type Request struct {
	Text  string
	Title string
	Style string
}

// Client calls a chat completions API to produce podcast scripts.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Client for the given endpoint and model.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Rewrite converts article text to a one-person podcast script with pause
// markers. The result is guaranteed to be at most 3000 characters.
func (c *Client) Rewrite(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", ErrEmptyText
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Style)},
			{Role: "user", Content: userPrompt(req.Title, req.Text)},
		},
		Temperature:      0.5,
		MaxTokens:        2000,
		TopP:             1,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.2,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", fmt.Errorf("chat api error: status %d: %s", resp.StatusCode, errBody)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}

	script := strings.TrimSpace(parsed.Choices[0].Message.Content)
	return enforceLimit(script), nil
}

// systemPrompt builds the style-dependent system message.
func systemPrompt(style string) string {
	var b strings.Builder
	b.WriteString("You are an expert podcast script writer. Convert the provided blog text into a concise, natural-sounding one-person podcast script that is UNDER 3000 CHARACTERS in length.")

	switch strings.ToLower(style) {
	case "professional":
		b.WriteString(" Use a professional, authoritative tone suitable for a business or educational podcast.")
	case "casual":
		b.WriteString(" Use a casual, friendly tone with occasional humor and a conversational style.")
	case "storytelling":
		b.WriteString(" Frame the content as a compelling story with narrative elements and emotional hooks.")
	default:
		b.WriteString(" Use a natural, conversational tone that sounds like someone talking to a friend.")
	}

	b.WriteString("\n\nInclude natural pauses and breaks in the script using the following notation:\n" +
		"- [pause-short] for brief pauses (about 1 second)\n\n" +
		"Place these pauses at natural points like:\n" +
		"- Between topic transitions\n" +
		"- After important points that need to sink in\n" +
		"- Before introducing new concepts\n" +
		"- When switching between explanation and examples\n\n" +
		"Format the script to be easily readable with paragraphs and sections.")
	return b.String()
}

func userPrompt(title, text string) string {
	if title != "" {
		return fmt.Sprintf("Convert this blog titled %q into a concise podcast script that is STRICTLY UNDER 3000 CHARACTERS in length. Focus on the most important points. The script MUST be under 3000 characters:\n\n%s", title, text)
	}
	return fmt.Sprintf("Convert this blog text into a concise podcast script that is STRICTLY UNDER 3000 CHARACTERS in length. Focus on the most important points. The script MUST be under 3000 characters:\n\n%s", text)
}

// enforceLimit truncates an over-length script at the last paragraph break
// before the cutoff, falling back to a sentence end, then to a hard cut.
func enforceLimit(script string) string {
	runes := []rune(script)
	if len(runes) <= scriptLimit {
		return script
	}

	window := string(runes[:truncateAt])
	breakPoint := strings.LastIndex(window, "\n\n")
	if breakPoint == -1 || breakPoint < minBreakPoint {
		if i := strings.LastIndex(window, ". "); i != -1 {
			breakPoint = i + 1
		} else {
			breakPoint = -1
		}
	}
	if breakPoint == -1 || breakPoint < minBreakPoint {
		return window + truncationNote
	}
	return window[:breakPoint] + truncationNote
}
