package llm

import "context"

// Tool describes a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Schema constrains a completion to a JSON document matching Definition.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Request is a single completion call.
type Request struct {
	Messages       []Message
	Tools          []Tool
	ResponseSchema *Schema
	Temperature    *float64
}

// Client produces the next assistant message for a conversation. The returned
// message either carries text or one or more tool calls.
type Client interface {
	Complete(ctx context.Context, req Request) (Message, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Message, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Message, error) {
	return f(ctx, req)
}
