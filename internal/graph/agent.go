// Package graph runs a conversation turn through the collector and
// question-answering agents.
package graph

import (
	"context"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
)

// Outcome is what an agent step produced: a PlainReply or a ToolRequest.
type Outcome interface {
	outcome()
}

// PlainReply ends the turn with text for the user.
type PlainReply struct {
	Message llm.Message
}

// ToolRequest asks the workflow to run one or more tools and call the agent again.
type ToolRequest struct {
	Message llm.Message
}

func (PlainReply) outcome()  {}
func (ToolRequest) outcome() {}

// Agent produces the next assistant step for a conversation.
type Agent interface {
	Name() string
	// Tools lists the tools the agent may call.
	Tools() []llm.Tool
	// Step runs one completion over the state. When withTools is false the
	// agent must answer in text.
	Step(ctx context.Context, s *conversation.State, withTools bool) (Outcome, error)
}

func complete(ctx context.Context, client llm.Client, system string, s *conversation.State, tools []llm.Tool) (Outcome, error) {
	msgs := make([]llm.Message, 0, len(s.Messages)+1)
	msgs = append(msgs, llm.SystemMessage(system))
	msgs = append(msgs, s.Messages...)

	reply, err := client.Complete(ctx, llm.Request{Messages: msgs, Tools: tools})
	if err != nil {
		return nil, err
	}
	reply.Role = llm.RoleAssistant
	if reply.HasToolCalls() {
		return ToolRequest{Message: reply}, nil
	}
	return PlainReply{Message: reply}, nil
}
