package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/metrics"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

// DefaultMaxToolRounds bounds the tool rounds of a single turn.
const DefaultMaxToolRounds = 6

// FallbackReply is sent when the model produced no text.
const FallbackReply = "I'm sorry, I couldn't produce an answer right now. Could you please rephrase or ask again?"

// ToolRunner executes the two tools on behalf of the agents.
type ToolRunner interface {
	Extract(ctx context.Context, transcript string) (string, *profile.UserProfile)
	Search(ctx context.Context, arguments string) string
}

// Result is the outcome of one turn.
type Result struct {
	State *conversation.State
	// Messages holds the assistant text produced this turn, including text
	// that accompanied tool calls.
	Messages []llm.Message
	// Reply is the text of the final assistant message.
	Reply string
	// ProfileCollected is true on the turn that completed the profile.
	ProfileCollected bool
	ToolRounds       int
}

// Workflow alternates between the collector and QA agents according to the
// conversation phase and dispatches their tool calls.
type Workflow struct {
	collector     Agent
	qa            Agent
	tools         ToolRunner
	maxToolRounds int
	logger        *slog.Logger
}

type Option func(*Workflow)

func WithMaxToolRounds(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxToolRounds = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithAgents replaces the default LLM-backed agents.
func WithAgents(collector, qa Agent) Option {
	return func(w *Workflow) {
		w.collector = collector
		w.qa = qa
	}
}

// New builds a workflow whose agents share client.
func New(client llm.Client, runner ToolRunner, opts ...Option) *Workflow {
	w := &Workflow{
		collector:     &Collector{Client: client},
		qa:            &QA{Client: client},
		tools:         runner,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) agentFor(p conversation.Phase) Agent {
	if p == conversation.PhaseAnswering {
		return w.qa
	}
	return w.collector
}

// Turn appends the user's utterance to a copy of prev and runs agents and tools
// until an agent replies in text. prev is never modified; a nil prev starts a
// new conversation. On error no state is returned.
func (w *Workflow) Turn(ctx context.Context, prev *conversation.State, utterance string) (*Result, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyUtterance
	}
	var st *conversation.State
	if prev == nil {
		st = conversation.New()
	} else {
		if err := prev.Validate(); err != nil {
			return nil, err
		}
		st = prev.Clone()
	}

	start := time.Now()
	startPhase := st.Phase
	res, err := w.run(ctx, st, utterance)
	metrics.TurnDuration.WithLabelValues(string(startPhase)).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TurnsTotal.WithLabelValues(string(startPhase), status).Inc()
	return res, err
}

func (w *Workflow) run(ctx context.Context, st *conversation.State, utterance string) (*Result, error) {
	firstNew := len(st.Messages)
	st.Append(llm.UserMessage(utterance))
	res := &Result{State: st}

	for {
		agent := w.agentFor(st.Phase)
		withTools := res.ToolRounds < w.maxToolRounds
		if !withTools {
			metrics.ToolRoundLimitTotal.Inc()
			w.logger.Warn("tool round limit reached", "session", st.ID, "agent", agent.Name(), "rounds", res.ToolRounds)
		}

		out, err := agent.Step(ctx, st, withTools)
		if err != nil {
			metrics.AgentStepsTotal.WithLabelValues(agent.Name(), "error").Inc()
			w.logger.Error("agent step failed", "session", st.ID, "agent", agent.Name(), "error", err)
			return nil, fmt.Errorf("%s agent: %w", agent.Name(), err)
		}

		switch o := out.(type) {
		case PlainReply:
			metrics.AgentStepsTotal.WithLabelValues(agent.Name(), "reply").Inc()
			st.Append(textReply(o.Message))
			return w.finish(res, firstNew), nil

		case ToolRequest:
			if !withTools {
				// tools were not offered; keep any text and drop the calls
				metrics.AgentStepsTotal.WithLabelValues(agent.Name(), "reply").Inc()
				w.logger.Warn("tool calls ignored after round limit", "session", st.ID, "agent", agent.Name(), "calls", len(o.Message.ToolCalls))
				st.Append(textReply(llm.AssistantMessage(o.Message.Content)))
				return w.finish(res, firstNew), nil
			}
			metrics.AgentStepsTotal.WithLabelValues(agent.Name(), "tool_call").Inc()
			res.ToolRounds++
			if err := w.dispatch(ctx, agent, st, o.Message, res); err != nil {
				w.logger.Error("tool dispatch rejected", "session", st.ID, "agent", agent.Name(), "error", err)
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%s agent: unexpected outcome %T", agent.Name(), out)
		}
	}
}

// dispatch checks every call of msg, runs them in order and appends the
// assistant message followed by one tool message per call.
func (w *Workflow) dispatch(ctx context.Context, agent Agent, st *conversation.State, msg llm.Message, res *Result) error {
	offered := agent.Tools()
	seen := make(map[string]bool, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		perr := &ProtocolError{Agent: agent.Name(), Tool: call.Name, CallID: call.ID}
		switch {
		case !slices.ContainsFunc(offered, func(t llm.Tool) bool { return t.Name == call.Name }):
			perr.Reason = "tool not offered to this agent"
		case call.ID == "":
			perr.Reason = "missing call id"
		case seen[call.ID]:
			perr.Reason = "duplicate call id"
		default:
			seen[call.ID] = true
			continue
		}
		return perr
	}

	// the transcript excludes the pending call
	transcript := st.Transcript()
	results := make([]llm.Message, 0, len(msg.ToolCalls))
	var collected *profile.UserProfile
	for _, call := range msg.ToolCalls {
		var text string
		switch call.Name {
		case tools.ExtractUserInfoName:
			if collected != nil {
				text = tools.ExtractSuccessText
				break
			}
			text, collected = w.tools.Extract(ctx, transcript)
		case tools.SearchInfoName:
			text = w.tools.Search(ctx, call.Arguments)
		}
		w.logger.Debug("tool executed", "session", st.ID, "tool", call.Name, "call", call.ID)
		results = append(results, llm.ToolResultMessage(call.ID, text))
	}

	st.Append(msg)
	st.Append(results...)
	if err := conversation.CheckToolResults(st.Messages); err != nil {
		return &ProtocolError{Agent: agent.Name(), Reason: err.Error()}
	}

	if collected != nil {
		if err := st.CompleteProfile(*collected); err != nil {
			return fmt.Errorf("completing profile: %w", err)
		}
		res.ProfileCollected = true
		metrics.PhaseTransitionsTotal.Inc()
		w.logger.Info("user profile collected", "session", st.ID, "hmo", collected.HMO, "tier", collected.InsuranceTier)
	}
	return nil
}

func (w *Workflow) finish(res *Result, firstNew int) *Result {
	for _, m := range res.State.Messages[firstNew:] {
		if m.Role == llm.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			res.Messages = append(res.Messages, m)
		}
	}
	last, _ := res.State.Last()
	res.Reply = last.Content
	return res
}

func textReply(m llm.Message) llm.Message {
	if strings.TrimSpace(m.Content) == "" {
		m.Content = FallbackReply
	}
	m.ToolCalls = nil
	return m
}
