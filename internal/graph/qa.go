package graph

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"text/template"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

//go:embed prompts/qa.tmpl
var qaPromptText string

var qaPrompt = template.Must(template.New("qa").Parse(qaPromptText))

// QA answers benefit questions for a member whose profile is known,
// retrieving context through search_info.
type QA struct {
	Client llm.Client
}

func (q *QA) Name() string { return "qa" }

func (q *QA) Tools() []llm.Tool { return []llm.Tool{tools.SearchInfo} }

func (q *QA) Step(ctx context.Context, s *conversation.State, withTools bool) (Outcome, error) {
	if s.Profile == nil {
		return nil, errors.New("qa agent needs a user profile")
	}
	system, err := renderQAPrompt(*s.Profile)
	if err != nil {
		return nil, err
	}
	var offered []llm.Tool
	if withTools {
		offered = q.Tools()
	}
	return complete(ctx, q.Client, system, s, offered)
}

func renderQAPrompt(p profile.UserProfile) (string, error) {
	var b strings.Builder
	err := qaPrompt.Execute(&b, struct {
		Name string
		HMO  string
		Tier string
	}{
		Name: p.FullName(),
		HMO:  p.HMO.Title(),
		Tier: p.InsuranceTier.Title(),
	})
	return b.String(), err
}
