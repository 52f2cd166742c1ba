package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
)

type extractorFunc func(ctx context.Context, transcript string) (profile.UserProfile, error)

func (f extractorFunc) Extract(ctx context.Context, transcript string) (profile.UserProfile, error) {
	return f(ctx, transcript)
}

type searcherFunc func(ctx context.Context, query string) ([]knowledge.Result, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]knowledge.Result, error) {
	return f(ctx, query)
}

func TestLookup(t *testing.T) {
	tool, err := Lookup("search_info")
	require.NoError(t, err)
	assert.Equal(t, SearchInfo.Name, tool.Name)

	_, err = Lookup("book_appointment")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestValidateArguments(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		wantErr bool
	}{
		{"question", SearchInfoName, `{"question":"dental benefits"}`, false},
		{"missing question", SearchInfoName, `{}`, true},
		{"empty question", SearchInfoName, `{"question":""}`, true},
		{"wrong type", SearchInfoName, `{"question":3}`, true},
		{"not json", SearchInfoName, `{question`, true},
		{"extract without args", ExtractUserInfoName, ``, false},
		{"extract empty object", ExtractUserInfoName, `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, err := Lookup(tt.tool)
			require.NoError(t, err)
			err = ValidateArguments(tool, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandlers_Extract(t *testing.T) {
	dana := profile.UserProfile{FirstName: "Dana"}
	var got string
	h := NewHandlers(extractorFunc(func(_ context.Context, transcript string) (profile.UserProfile, error) {
		got = transcript
		return dana, nil
	}), nil, nil)

	text, p := h.Extract(context.Background(), "User: hi")
	assert.Equal(t, ExtractSuccessText, text)
	require.NotNil(t, p)
	assert.Equal(t, "Dana", p.FirstName)
	assert.Equal(t, "User: hi", got)

	h = NewHandlers(extractorFunc(func(context.Context, string) (profile.UserProfile, error) {
		return profile.UserProfile{}, errors.New("national_id: Does not match pattern")
	}), nil, nil)
	text, p = h.Extract(context.Background(), "User: hi")
	assert.Nil(t, p)
	assert.Equal(t, "Error collecting user information: national_id: Does not match pattern", text)
}

func TestHandlers_Search(t *testing.T) {
	var gotQuery string
	h := NewHandlers(nil, searcherFunc(func(_ context.Context, q string) ([]knowledge.Result, error) {
		gotQuery = q
		return []knowledge.Result{{Content: "Cleanings are free for gold members."}}, nil
	}), nil)

	text := h.Search(context.Background(), `{"question":"dental cleaning gold"}`)
	assert.Equal(t, "dental cleaning gold", gotQuery)
	assert.Equal(t, "Result 1:\nCleanings are free for gold members.\n", text)
}

func TestHandlers_SearchFailures(t *testing.T) {
	empty := NewHandlers(nil, searcherFunc(func(context.Context, string) ([]knowledge.Result, error) {
		return nil, nil
	}), nil)
	assert.Equal(t, knowledge.NoResultsText, empty.Search(context.Background(), `{"question":"x"}`))

	failing := NewHandlers(nil, searcherFunc(func(context.Context, string) ([]knowledge.Result, error) {
		return nil, errors.New("index offline")
	}), nil)
	assert.Equal(t, "Error searching for information: index offline", failing.Search(context.Background(), `{"question":"x"}`))

	text := failing.Search(context.Background(), `{}`)
	assert.True(t, strings.HasPrefix(text, "Error searching for information: invalid arguments for search_info"), text)
}
