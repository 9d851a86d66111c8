package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Refiner turns a raw user memory into a polished comic script and breaks a
// story into a per-page visual structure.
type Refiner interface {
	RefineStory(ctx context.Context, story string) (string, error)
	StoryStructure(ctx context.Context, req StructureRequest) (*StoryStructure, error)
}

// StructureRequest carries the inputs for a story breakdown.
type StructureRequest struct {
	Story          string
	Theme          string
	Character1Name string
	Character2Name string
	Relationship   string
	Tone           string
	Slogan         string
	PageCount      int
}

// StoryStructure is the visual plan for a comic book: one description per
// interior page plus covers.
type StoryStructure struct {
	FrontCoverTitle string   `json:"frontCoverTitle,omitempty"`
	FrontCover      string   `json:"frontCover"`
	Pages           []string `json:"pages"`
	BackCover       string   `json:"backCover"`
	GeneratedSlogan string   `json:"generatedSlogan,omitempty"`
}

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Refiner
	OnFallback func(reason string, err error)
}

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	fallback   Refiner
	onFallback func(reason string, err error)
}

const groqDefaultTimeout = 20 * time.Second

const defaultGroqModel = "llama-3.3-70b-versatile"

const refineSystemPrompt = "You are a professional comic book writer. Your task is to refine and improve personal stories into engaging, concise, and descriptive scripts for short comic books. Focus on emotional impact and visual clarity. Keep the response under 500 characters and maintain the first-person perspective if used."

const structureSystemPrompt = `You are a professional comic book writer and visual director.
Your task is to take a story and break it down into a specific visual structure for an AI image generator.
Return ONLY valid JSON with no markdown formatting or extra text.
The JSON structure must be:
{
  "frontCoverTitle": "A creative title",
  "frontCover": "Visual description...",
  "pages": ["Page 1 desc", "Page 2 desc", ...],
  "backCover": "Visual description...",
  "generatedSlogan": "Short slogan"
}`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGroqModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: groqDefaultTimeout}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		client:     client,
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
	}, nil
}

// RefineStory rewrites the story via the chat completions API. Any failure
// falls back to returning the story as given, so callers never lose input.
func (c *Client) RefineStory(ctx context.Context, story string) (string, error) {
	if c.apiKey == "" {
		return c.refineFallback(ctx, story, "missing_api_key", nil)
	}
	payload := chatRequest{
		Model:       c.model,
		Temperature: 0.7,
		MaxTokens:   300,
		Messages: []chatMessage{
			{Role: "system", Content: refineSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Refine this memory into a more poetic and descriptive comic book script: %q", story)},
		},
	}
	text, err := c.complete(ctx, payload)
	if err != nil {
		return c.refineFallback(ctx, story, "chat_completion", err)
	}
	if text == "" {
		return c.refineFallback(ctx, story, "empty_response", errors.New("empty response"))
	}
	return text, nil
}

// StoryStructure asks the model for a JSON page breakdown. Failures fall back
// to a static structure so a generation run can always proceed.
func (c *Client) StoryStructure(ctx context.Context, req StructureRequest) (*StoryStructure, error) {
	if c.apiKey == "" {
		return c.structureFallback(ctx, req, "missing_api_key", nil)
	}
	payload := chatRequest{
		Model:          c.model,
		Temperature:    0.7,
		MaxTokens:      1500,
		ResponseFormat: &chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: structureSystemPrompt},
			{Role: "user", Content: buildStructurePrompt(req)},
		},
	}
	text, err := c.complete(ctx, payload)
	if err != nil {
		return c.structureFallback(ctx, req, "chat_completion", err)
	}
	var structure StoryStructure
	if err := json.Unmarshal([]byte(text), &structure); err != nil {
		return c.structureFallback(ctx, req, "parse_payload", err)
	}
	if len(structure.Pages) == 0 {
		return c.structureFallback(ctx, req, "empty_pages", errors.New("no pages"))
	}
	return &structure, nil
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("groq status %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func buildStructurePrompt(req StructureRequest) string {
	pageCount := req.PageCount
	if pageCount <= 0 {
		pageCount = 5
	}
	slogan := strings.TrimSpace(req.Slogan)
	if slogan == "" {
		slogan = "Love is a journey we take together."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Story: %s\n", strings.TrimSpace(req.Story))
	fmt.Fprintf(&b, "Characters: %s and %s\n", req.Character1Name, req.Character2Name)
	fmt.Fprintf(&b, "Relationship: %s\n", req.Relationship)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "Slogan/Title for Back Cover: %q\n\n", slogan)
	fmt.Fprintf(&b, "Task: Break this story into exactly %d sequential comic book page descriptions.\n", pageCount)
	b.WriteString("Plus create a visual description for a Front Cover (Title starting with \"Our...\") and a Back Cover (Conclusion).\n\n")
	b.WriteString("CRITICAL SAFETY INSTRUCTION: You are a PG-13 comic generator. DO NOT generate nudity, sexual content, gore, or extreme violence. If the story contains such themes, tone them down to be suggestive but safe, or refuse if impossible.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("1. Front Cover: Visual description suitable for a cover. Title should be creative related to \"Our...\".\n")
	fmt.Fprintf(&b, "2. Pages 1-%d: Each page must be described as having a 5-panel layout.\n", pageCount)
	b.WriteString("   - CRITICAL: At least 3 panels on EVERY page must have meaningful dialogue or narration relevant to the story on that page.\n")
	b.WriteString("   - Ensure consistent storytelling across pages.\n")
	b.WriteString("3. Back Cover: A Great Happy Ending visual.\n")
	b.WriteString("   - CRITICAL: NO dialogues on the back cover.\n")
	fmt.Fprintf(&b, "   - The only text should be the slogan: %q.\n", slogan)
	b.WriteString("   - If the user didn't provide a slogan, generate a short, romantic/meaningful 3-5 word slogan for the back cover yourself.\n\n")
	b.WriteString("Make sure the descriptions are visual and suitable for an AI image generator.")
	return b.String()
}

func (c *Client) refineFallback(ctx context.Context, story, reason string, fallbackErr error) (string, error) {
	c.emitFallback(reason, fallbackErr)
	if c.fallback != nil {
		return c.fallback.RefineStory(ctx, story)
	}
	return NewStaticRefiner().RefineStory(ctx, story)
}

func (c *Client) structureFallback(ctx context.Context, req StructureRequest, reason string, fallbackErr error) (*StoryStructure, error) {
	c.emitFallback(reason, fallbackErr)
	if c.fallback != nil {
		return c.fallback.StoryStructure(ctx, req)
	}
	return NewStaticRefiner().StoryStructure(ctx, req)
}

func (c *Client) emitFallback(reason string, err error) {
	if c.onFallback != nil {
		c.onFallback(reason, err)
	}
}

var _ Refiner = (*Client)(nil)
