package graph

import (
	"context"
	_ "embed"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

//go:embed prompts/info_collection.txt
var collectionPrompt string

// Collector gathers the member's details and calls extract_user_info once
// they are confirmed.
type Collector struct {
	Client llm.Client
}

func (c *Collector) Name() string { return "collector" }

func (c *Collector) Tools() []llm.Tool { return []llm.Tool{tools.ExtractUserInfo} }

func (c *Collector) Step(ctx context.Context, s *conversation.State, withTools bool) (Outcome, error) {
	var offered []llm.Tool
	if withTools {
		offered = c.Tools()
	}
	return complete(ctx, c.Client, collectionPrompt, s, offered)
}
