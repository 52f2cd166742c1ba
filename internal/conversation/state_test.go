package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
)

var dana = profile.UserProfile{
	FirstName:     "Dana",
	LastName:      "Levi",
	NationalID:    "123456789",
	Gender:        profile.GenderFemale,
	DateOfBirth:   "01/05/1990",
	HMO:           profile.HMOMaccabi,
	InsuranceTier: profile.TierGold,
}

func TestNew(t *testing.T) {
	s := New()
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, PhaseCollecting, s.Phase)
	assert.Nil(t, s.Profile)
	assert.NoError(t, s.Validate())
}

func TestCompleteProfile_Once(t *testing.T) {
	s := New()
	require.NoError(t, s.CompleteProfile(dana))
	assert.Equal(t, PhaseAnswering, s.Phase)
	assert.Equal(t, dana, *s.Profile)

	other := dana
	other.FirstName = "Noa"
	assert.ErrorIs(t, s.CompleteProfile(other), ErrProfileImmutable)
	assert.Equal(t, "Dana", s.Profile.FirstName)
	assert.Equal(t, PhaseAnswering, s.Phase)
}

func TestClone_Independent(t *testing.T) {
	s := New()
	s.Append(llm.UserMessage("hi"), llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "extract_user_info"}))
	require.NoError(t, s.CompleteProfile(dana))

	c := s.Clone()
	c.Messages[1].ToolCalls[0].Name = "changed"
	c.Profile.FirstName = "changed"
	c.Append(llm.UserMessage("more"))

	assert.Equal(t, "extract_user_info", s.Messages[1].ToolCalls[0].Name)
	assert.Equal(t, "Dana", s.Profile.FirstName)
	assert.Len(t, s.Messages, 2)
}

func TestTranscript(t *testing.T) {
	s := New()
	s.Append(
		llm.UserMessage("Hi, I'm Dana"),
		llm.AssistantMessage("Nice to meet you"),
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "extract_user_info"}),
		llm.ToolResultMessage("c1", "Error collecting user information: missing tier"),
		llm.UserMessage("gold"),
	)
	assert.Equal(t, "User: Hi, I'm Dana\nAssistant: Nice to meet you\nUser: gold", s.Transcript())
}

func TestCheckToolResults(t *testing.T) {
	call := func(id string) llm.ToolCall { return llm.ToolCall{ID: id, Name: "search_info"} }
	cases := []struct {
		name    string
		msgs    []llm.Message
		wantErr bool
	}{
		{
			name: "matched",
			msgs: []llm.Message{llm.UserMessage("q"), llm.AssistantMessage("", call("a")), llm.ToolResultMessage("a", "r"), llm.AssistantMessage("answer")},
		},
		{
			name: "two calls answered in order",
			msgs: []llm.Message{llm.AssistantMessage("", call("a"), call("b")), llm.ToolResultMessage("a", "r"), llm.ToolResultMessage("b", "r")},
		},
		{
			name:    "orphan result",
			msgs:    []llm.Message{llm.UserMessage("q"), llm.ToolResultMessage("a", "r")},
			wantErr: true,
		},
		{
			name:    "wrong id",
			msgs:    []llm.Message{llm.AssistantMessage("", call("a")), llm.ToolResultMessage("b", "r")},
			wantErr: true,
		},
		{
			name:    "unanswered before user",
			msgs:    []llm.Message{llm.AssistantMessage("", call("a")), llm.UserMessage("q")},
			wantErr: true,
		},
		{
			name:    "dangling at end",
			msgs:    []llm.Message{llm.AssistantMessage("", call("a"), call("b")), llm.ToolResultMessage("a", "r")},
			wantErr: true,
		},
		{
			name:    "result answered twice",
			msgs:    []llm.Message{llm.AssistantMessage("", call("a")), llm.ToolResultMessage("a", "r"), llm.ToolResultMessage("a", "r")},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckToolResults(tc.msgs)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	s := New()
	s.Append(
		llm.UserMessage("My name is Dana Levi, ID 123456789, female, born 01/05/1990, Maccabi, gold"),
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "extract_user_info", Arguments: "{}"}),
		llm.ToolResultMessage("c1", "User information collected successfully! How can I help you with HMO services?"),
		llm.AssistantMessage("Hi Dana, how can I help?"),
	)
	require.NoError(t, s.CompleteProfile(dana))

	data, err := Marshal(s)
	require.NoError(t, err)
	restored, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, s.Messages, restored.Messages)
	assert.Equal(t, s.Phase, restored.Phase)
	assert.Equal(t, *s.Profile, *restored.Profile)
	assert.Equal(t, s.ID, restored.ID)
	assert.True(t, s.CreatedAt.Equal(restored.CreatedAt))
}

func TestUnmarshal_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":                `{`,
		"answering no profile":    `{"id":"x","phase":"answering","messages":[]}`,
		"unknown phase":           `{"id":"x","phase":"done","messages":[]}`,
		"orphan tool result":      `{"id":"x","phase":"collecting","messages":[{"role":"tool","content":"r","tool_call_id":"a"}]}`,
		"collecting with profile": `{"id":"x","phase":"collecting","user_profile":{"first_name":"Dana"},"messages":[]}`,
		"answering bad profile":   `{"id":"x","phase":"answering","user_profile":{"first_name":"x","national_id":"12"},"messages":[]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}
