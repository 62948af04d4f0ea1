// Package chat answers plain messages that are not download links.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Companion produces a conversational reply to a plain text message.
type Companion interface {
	Reply(ctx context.Context, text string) (string, error)
}

const systemPrompt = "You are a friendly Telegram bot assistant. " +
	"Your main job is downloading media from links, but you happily chat too. " +
	"Keep answers short and plain; this is a chat window, not an essay."

// Gemini is a stateless single-turn companion backed by the Gemini API.
// Each message stands alone; no conversation history is kept.
type Gemini struct {
	model *genai.GenerativeModel
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("chat: create gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	return &Gemini{model: model}, nil
}

func (g *Gemini) Reply(ctx context.Context, text string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("chat: generate reply: %w", err)
	}
	return flatten(resp), nil
}

func flatten(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
