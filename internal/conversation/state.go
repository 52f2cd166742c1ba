package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
)

// Phase selects the active agent.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseAnswering  Phase = "answering"
)

// WelcomeMessage greets a new member before the first turn.
const WelcomeMessage = "Hi there! I am the HMO services chatbot. I would be happy to help you with questions about your HMO services. I can answer in both Hebrew and English. Can you please tell me your name?"

var (
	ErrInvalidState     = errors.New("invalid conversation state")
	ErrProfileImmutable = errors.New("user profile already collected")
)

// State is everything a conversation carries between turns. History is
// append-only and the profile is set at most once.
type State struct {
	ID        string               `json:"id"`
	Phase     Phase                `json:"phase"`
	Profile   *profile.UserProfile `json:"user_profile,omitempty"`
	Messages  []llm.Message        `json:"messages"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func New() *State {
	now := time.Now().UTC()
	return &State{
		ID:        uuid.NewString(),
		Phase:     PhaseCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	c := *s
	c.Messages = make([]llm.Message, len(s.Messages))
	for i, m := range s.Messages {
		if m.ToolCalls != nil {
			m.ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
		}
		c.Messages[i] = m
	}
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	return &c
}

// Append adds messages to the end of the history.
func (s *State) Append(msgs ...llm.Message) {
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now().UTC()
}

// CompleteProfile stores the collected profile and moves the conversation to
// the answering phase.
func (s *State) CompleteProfile(p profile.UserProfile) error {
	if s.Profile != nil || s.Phase == PhaseAnswering {
		return ErrProfileImmutable
	}
	s.Profile = &p
	s.Phase = PhaseAnswering
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Last returns the most recent message.
func (s *State) Last() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Transcript renders the user and assistant text turns, one per line.
func (s *State) Transcript() string {
	var b strings.Builder
	for _, m := range s.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case llm.RoleUser:
			b.WriteString("User: ")
		case llm.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Validate checks phase/profile consistency, the collected profile itself
// and tool call correlation.
func (s *State) Validate() error {
	switch s.Phase {
	case PhaseCollecting:
		if s.Profile != nil {
			return fmt.Errorf("%w: profile set while collecting", ErrInvalidState)
		}
	case PhaseAnswering:
		if s.Profile == nil {
			return fmt.Errorf("%w: answering without a profile", ErrInvalidState)
		}
		if err := s.Profile.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}
	if err := CheckToolResults(s.Messages); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}

// CheckToolResults verifies that every tool message answers a call of the
// immediately preceding assistant message and that every call is answered
// before the history moves on.
func CheckToolResults(msgs []llm.Message) error {
	var pending map[string]bool
	for i, m := range msgs {
		if m.Role == llm.RoleTool {
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: tool result %q has no matching call", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
			continue
		}
		if len(pending) > 0 {
			return fmt.Errorf("message %d: %d tool call(s) left unanswered", i, len(pending))
		}
		pending = nil
		if m.HasToolCalls() {
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				if c.ID == "" || pending[c.ID] {
					return fmt.Errorf("message %d: missing or duplicate tool call id", i)
				}
				pending[c.ID] = true
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d tool call(s) left unanswered", len(pending))
	}
	return nil
}

// Marshal serializes s for storage.
func Marshal(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal restores a state and validates it.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if s.Phase == "" {
		s.Phase = PhaseCollecting
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
