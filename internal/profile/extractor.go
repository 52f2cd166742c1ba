package profile

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
)

//go:embed prompts/info_extraction.txt
var extractionPrompt string

// Extractor turns a conversation transcript into a validated UserProfile
// using a structured-output completion call.
type Extractor struct {
	Client llm.Client
}

func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{Client: client}
}

func (e *Extractor) Extract(ctx context.Context, transcript string) (UserProfile, error) {
	if strings.TrimSpace(transcript) == "" {
		return UserProfile{}, errors.New("empty conversation history")
	}
	temperature := 0.0
	reply, err := e.Client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.SystemMessage(extractionPrompt),
			llm.UserMessage("<chat_history>" + transcript + "</chat_history>"),
		},
		ResponseSchema: &llm.Schema{
			Name:        "user_profile",
			Description: "Member details collected during onboarding",
			Definition:  Schema,
		},
		Temperature: &temperature,
	})
	if err != nil {
		return UserProfile{}, fmt.Errorf("extracting user profile: %w", err)
	}
	doc := strings.TrimSpace(reply.Content)
	doc = strings.TrimPrefix(doc, "```json")
	doc = strings.TrimPrefix(doc, "```")
	doc = strings.TrimSuffix(doc, "```")
	if strings.TrimSpace(doc) == "" {
		return UserProfile{}, errors.New("extraction returned no content")
	}
	return Parse([]byte(doc))
}
