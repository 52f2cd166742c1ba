package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

type step struct {
	msg llm.Message
	err error
}

// scriptedClient replays completion results in order and records requests.
type scriptedClient struct {
	t        *testing.T
	steps    []step
	requests []llm.Request
}

func script(t *testing.T, steps ...step) *scriptedClient {
	return &scriptedClient{t: t, steps: steps}
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Message, error) {
	c.requests = append(c.requests, req)
	if len(c.steps) == 0 {
		c.t.Fatalf("unexpected completion call #%d", len(c.requests))
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	return s.msg, s.err
}

func reply(text string) step {
	return step{msg: llm.AssistantMessage(text)}
}

func calls(cs ...llm.ToolCall) step {
	return step{msg: llm.AssistantMessage("", cs...)}
}

func extractCall(id string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: tools.ExtractUserInfoName, Arguments: "{}"}
}

func searchCall(id, question string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: tools.SearchInfoName, Arguments: `{"question":"` + question + `"}`}
}

// fakeRunner records tool executions.
type fakeRunner struct {
	profile     *profile.UserProfile
	extractText string
	transcripts []string
	searches    []string
}

func (f *fakeRunner) Extract(_ context.Context, transcript string) (string, *profile.UserProfile) {
	f.transcripts = append(f.transcripts, transcript)
	if f.profile == nil {
		return f.extractText, nil
	}
	return tools.ExtractSuccessText, f.profile
}

func (f *fakeRunner) Search(_ context.Context, arguments string) string {
	f.searches = append(f.searches, arguments)
	return "Result 1:\nCleanings are covered twice a year.\n"
}

func dana() profile.UserProfile {
	return profile.UserProfile{
		FirstName:     "Dana",
		LastName:      "Levi",
		NationalID:    "123456789",
		Gender:        profile.GenderFemale,
		DateOfBirth:   "01/05/1990",
		HMO:           profile.HMOMaccabi,
		InsuranceTier: profile.TierGold,
	}
}

func answeringState(t *testing.T) *conversation.State {
	t.Helper()
	st := conversation.New()
	st.Append(llm.UserMessage("Dana Levi, 123456789, female, 01/05/1990, Maccabi, gold. Yes, correct."))
	require.NoError(t, st.CompleteProfile(dana()))
	st.Append(llm.AssistantMessage("Hello Dana Levi! How can I help you with your HMO services?"))
	return st
}

func toolNames(ts []llm.Tool) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func TestTurn_NewConversation(t *testing.T) {
	client := script(t, reply("Hi! What is your first and last name?"))
	wf := New(client, &fakeRunner{})

	res, err := wf.Turn(context.Background(), nil, "Hello")
	require.NoError(t, err)

	assert.Equal(t, conversation.PhaseCollecting, res.State.Phase)
	assert.Nil(t, res.State.Profile)
	assert.NotEmpty(t, res.State.ID)
	require.Len(t, res.State.Messages, 2)
	assert.Equal(t, llm.UserMessage("Hello"), res.State.Messages[0])
	assert.Equal(t, "Hi! What is your first and last name?", res.Reply)
	assert.Len(t, res.Messages, 1)
	assert.False(t, res.ProfileCollected)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, collectionPrompt, req.Messages[0].Content)
	assert.Equal(t, []string{tools.ExtractUserInfoName}, toolNames(req.Tools))
}

func TestTurn_DoesNotMutatePrevious(t *testing.T) {
	prev := answeringState(t)
	before := prev.Clone()

	client := script(t, calls(searchCall("call_1", "dental")), reply("Cleanings are covered."))
	res, err := New(client, &fakeRunner{}).Turn(context.Background(), prev, "Is dental covered?")
	require.NoError(t, err)

	assert.Equal(t, before, prev)
	assert.Len(t, res.State.Messages, len(prev.Messages)+4)
	assert.Equal(t, prev.ID, res.State.ID)
}

func TestTurn_ProfileCollectedWithinOneTurn(t *testing.T) {
	p := dana()
	runner := &fakeRunner{profile: &p}
	client := script(t,
		calls(extractCall("call_1")),
		reply("Hello Dana Levi! How can I help you with your Maccabi services?"),
	)
	prev := conversation.New()
	prev.Append(
		llm.UserMessage("Dana Levi, 123456789, female, 01/05/1990, Maccabi, gold"),
		llm.AssistantMessage("Please confirm: Dana Levi, ID 123456789 ... Is that correct?"),
	)

	res, err := New(client, runner).Turn(context.Background(), prev, "Yes, that's correct")
	require.NoError(t, err)

	assert.True(t, res.ProfileCollected)
	assert.Equal(t, conversation.PhaseAnswering, res.State.Phase)
	require.NotNil(t, res.State.Profile)
	assert.Equal(t, p, *res.State.Profile)
	assert.Equal(t, 1, res.ToolRounds)

	msgs := res.State.Messages[len(prev.Messages):]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].HasToolCalls())
	assert.Equal(t, llm.ToolResultMessage("call_1", tools.ExtractSuccessText), msgs[2])
	assert.Equal(t, "Hello Dana Levi! How can I help you with your Maccabi services?", msgs[3].Content)

	require.Len(t, runner.transcripts, 1)
	assert.Equal(t, "User: Dana Levi, 123456789, female, 01/05/1990, Maccabi, gold\n"+
		"Assistant: Please confirm: Dana Levi, ID 123456789 ... Is that correct?\n"+
		"User: Yes, that's correct", runner.transcripts[0])

	require.Len(t, client.requests, 2)
	qaReq := client.requests[1]
	assert.Equal(t, []string{tools.SearchInfoName}, toolNames(qaReq.Tools))
	assert.Contains(t, qaReq.Messages[0].Content, "Dana Levi")
	assert.Contains(t, qaReq.Messages[0].Content, "Maccabi")
	assert.Contains(t, qaReq.Messages[0].Content, "Gold")
	assert.Equal(t, llm.RoleTool, qaReq.Messages[len(qaReq.Messages)-1].Role)
}

func TestTurn_ExtractionFailureStaysCollecting(t *testing.T) {
	runner := &fakeRunner{extractText: "Error collecting user information: national_id: must be 9 digits"}
	client := script(t,
		calls(extractCall("call_1")),
		reply("The ID number must have 9 digits. Could you check it again?"),
	)

	res, err := New(client, runner).Turn(context.Background(), nil, "Dana Levi, ID 12345, yes correct")
	require.NoError(t, err)

	assert.Equal(t, conversation.PhaseCollecting, res.State.Phase)
	assert.Nil(t, res.State.Profile)
	assert.False(t, res.ProfileCollected)
	require.Len(t, res.State.Messages, 4)
	assert.True(t, strings.HasPrefix(res.State.Messages[2].Content, "Error collecting user information: "))
	assert.Equal(t, "The ID number must have 9 digits. Could you check it again?", res.Reply)

	// the collector is re-entered, still with its tool
	require.Len(t, client.requests, 2)
	assert.Equal(t, []string{tools.ExtractUserInfoName}, toolNames(client.requests[1].Tools))
}

func TestTurn_AnsweringStaysAnswering(t *testing.T) {
	runner := &fakeRunner{}
	client := script(t,
		calls(searchCall("call_9", "dental cleaning maccabi gold")),
		reply("Gold members get two free cleanings a year."),
	)
	prev := answeringState(t)

	res, err := New(client, runner).Turn(context.Background(), prev, "What about dental cleaning?")
	require.NoError(t, err)

	assert.Equal(t, conversation.PhaseAnswering, res.State.Phase)
	assert.False(t, res.ProfileCollected)
	assert.Equal(t, []string{`{"question":"dental cleaning maccabi gold"}`}, runner.searches)
	assert.Empty(t, runner.transcripts)
	assert.Equal(t, "Gold members get two free cleanings a year.", res.Reply)
	assert.NoError(t, conversation.CheckToolResults(res.State.Messages))
}

func TestTurn_MultipleToolCalls(t *testing.T) {
	runner := &fakeRunner{}
	client := script(t,
		calls(searchCall("a", "dental"), searchCall("b", "optics")),
		reply("Both are covered."),
	)

	res, err := New(client, runner).Turn(context.Background(), answeringState(t), "Dental and optics?")
	require.NoError(t, err)

	n := len(res.State.Messages)
	tail := res.State.Messages[n-4:]
	assert.Len(t, tail[0].ToolCalls, 2)
	assert.Equal(t, "a", tail[1].ToolCallID)
	assert.Equal(t, "b", tail[2].ToolCallID)
	assert.Equal(t, "Both are covered.", tail[3].Content)
	assert.Len(t, runner.searches, 2)
	assert.Equal(t, 1, res.ToolRounds)
}

func TestTurn_TextAlongsideToolCallIsReturned(t *testing.T) {
	client := script(t,
		step{msg: llm.AssistantMessage("Let me check that for you.", searchCall("a", "dental"))},
		reply("Cleanings are covered twice a year."),
	)

	res, err := New(client, &fakeRunner{}).Turn(context.Background(), answeringState(t), "Is dental covered?")
	require.NoError(t, err)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, "Let me check that for you.", res.Messages[0].Content)
	assert.Equal(t, "Cleanings are covered twice a year.", res.Messages[1].Content)
	assert.Equal(t, "Cleanings are covered twice a year.", res.Reply)
}

func TestTurn_RepeatedExtractCallsInOneMessage(t *testing.T) {
	p := dana()
	runner := &fakeRunner{profile: &p}
	client := script(t,
		calls(extractCall("x1"), extractCall("x2")),
		reply("Welcome Dana!"),
	)

	res, err := New(client, runner).Turn(context.Background(), nil, "confirmed")
	require.NoError(t, err)
	assert.Len(t, runner.transcripts, 1)
	assert.Equal(t, conversation.PhaseAnswering, res.State.Phase)
	assert.Equal(t, tools.ExtractSuccessText, res.State.Messages[3].Content)
}

func TestTurn_ProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		prev   func(t *testing.T) *conversation.State
		step   step
		reason string
	}{
		{
			name:   "collector calls search",
			prev:   func(*testing.T) *conversation.State { return nil },
			step:   calls(searchCall("c1", "dental")),
			reason: "tool not offered",
		},
		{
			name:   "qa calls extract",
			prev:   answeringState,
			step:   calls(extractCall("c1")),
			reason: "tool not offered",
		},
		{
			name:   "unknown tool",
			prev:   answeringState,
			step:   calls(llm.ToolCall{ID: "c1", Name: "book_appointment"}),
			reason: "tool not offered",
		},
		{
			name:   "missing id",
			prev:   answeringState,
			step:   calls(searchCall("", "dental")),
			reason: "missing call id",
		},
		{
			name:   "duplicate id",
			prev:   answeringState,
			step:   calls(searchCall("c1", "dental"), searchCall("c1", "optics")),
			reason: "duplicate call id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			prev := tt.prev(t)
			res, err := New(script(t, tt.step), runner).Turn(context.Background(), prev, "hi")
			require.Error(t, err)
			assert.Nil(t, res)

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, tt.reason)
			assert.Empty(t, runner.searches)
			assert.Empty(t, runner.transcripts)
		})
	}
}

func TestTurn_CompletionErrorPropagates(t *testing.T) {
	boom := errors.New("azure unavailable")
	prev := answeringState(t)
	before := prev.Clone()
	client := script(t, calls(searchCall("c1", "dental")), step{err: boom})

	res, err := New(client, &fakeRunner{}).Turn(context.Background(), prev, "dental?")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
	assert.Equal(t, before, prev)

	var perr *ProtocolError
	assert.False(t, errors.As(err, &perr))
}

func TestTurn_ToolRoundLimit(t *testing.T) {
	runner := &fakeRunner{}
	client := script(t,
		calls(searchCall("1", "q")),
		calls(searchCall("2", "q")),
		reply("Here is what I found."),
	)

	res, err := New(client, runner, WithMaxToolRounds(2)).Turn(context.Background(), answeringState(t), "dental?")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ToolRounds)
	assert.Equal(t, "Here is what I found.", res.Reply)

	require.Len(t, client.requests, 3)
	assert.NotEmpty(t, client.requests[1].Tools)
	assert.Empty(t, client.requests[2].Tools)
}

func TestTurn_ToolRoundLimitFallback(t *testing.T) {
	client := script(t,
		calls(searchCall("1", "q")),
		calls(searchCall("2", "q")),
	)

	res, err := New(client, &fakeRunner{}, WithMaxToolRounds(1)).Turn(context.Background(), answeringState(t), "dental?")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, res.Reply)
	assert.Equal(t, 1, res.ToolRounds)
	assert.NoError(t, res.State.Validate())
}

func TestTurn_EmptyReplyFallback(t *testing.T) {
	res, err := New(script(t, reply("  ")), &fakeRunner{}).Turn(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, res.Reply)
	assert.Equal(t, FallbackReply, res.State.Messages[1].Content)
}

func TestTurn_InputErrors(t *testing.T) {
	wf := New(script(t), &fakeRunner{})

	_, err := wf.Turn(context.Background(), nil, "   ")
	assert.ErrorIs(t, err, ErrEmptyUtterance)

	bad := conversation.New()
	bad.Phase = conversation.PhaseAnswering
	_, err = wf.Turn(context.Background(), bad, "hi")
	assert.ErrorIs(t, err, conversation.ErrInvalidState)
}

type searcherFunc func(ctx context.Context, query string) ([]knowledge.Result, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]knowledge.Result, error) {
	return f(ctx, query)
}

func TestTurn_EndToEnd(t *testing.T) {
	const danaJSON = `{"first_name":"Dana","last_name":"Levi","national_id":"123-456-789","gender":"נקבה",` +
		`"date_of_birth":"01.05.1990","hmo":"מכבי","insurance_tier":"Gold"}`
	extraction := script(t, reply(danaJSON))
	handlers := tools.NewHandlers(
		profile.NewExtractor(extraction),
		searcherFunc(func(context.Context, string) ([]knowledge.Result, error) { return nil, nil }),
		nil,
	)
	agents := script(t,
		reply("Hi! What's your full name?"),
		calls(extractCall("call_x")),
		reply("Thanks Dana! How can I help?"),
		calls(searchCall("call_s", "acupuncture")),
		reply("I couldn't find information about acupuncture for your plan."),
	)
	wf := New(agents, handlers)
	ctx := context.Background()

	first, err := wf.Turn(ctx, nil, "שלום")
	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseCollecting, first.State.Phase)

	second, err := wf.Turn(ctx, first.State, "Dana Levi 123-456-789 נקבה 01.05.1990 מכבי זהב, confirmed")
	require.NoError(t, err)
	assert.True(t, second.ProfileCollected)
	assert.Equal(t, conversation.PhaseAnswering, second.State.Phase)
	assert.Equal(t, "123456789", second.State.Profile.NationalID)
	assert.Equal(t, profile.HMOMaccabi, second.State.Profile.HMO)
	assert.Equal(t, profile.GenderFemale, second.State.Profile.Gender)

	third, err := wf.Turn(ctx, second.State, "Is acupuncture covered?")
	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseAnswering, third.State.Phase)
	assert.NotEmpty(t, third.Reply)
	n := len(third.State.Messages)
	assert.Equal(t, knowledge.NoResultsText, third.State.Messages[n-2].Content)

	data, err := conversation.Marshal(third.State)
	require.NoError(t, err)
	restored, err := conversation.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, third.State.Messages, restored.Messages)
	assert.Equal(t, third.State.Profile, restored.Profile)
	assert.Equal(t, third.State.Phase, restored.Phase)
}

func TestRenderQAPrompt(t *testing.T) {
	prompt, err := renderQAPrompt(dana())
	require.NoError(t, err)
	assert.Contains(t, prompt, "Name: Dana Levi")
	assert.Contains(t, prompt, "HMO: Maccabi")
	assert.Contains(t, prompt, "Membership tier: Gold")
	assert.Contains(t, prompt, "search_info")
}
