// Package tools holds the tool manifests offered to the agents and the
// handlers that execute them.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
)

const (
	ExtractUserInfoName = "extract_user_info"
	SearchInfoName      = "search_info"
)

// ExtractUserInfo is offered to the collector once the user confirmed their details.
var ExtractUserInfo = llm.Tool{
	Name: ExtractUserInfoName,
	Description: "Extract the user's details (first and last name, national ID, gender, date of birth, " +
		"HMO and insurance tier) from the conversation history. Call only after the user confirmed all details are correct.",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

// SearchInfo is offered to the QA agent for knowledge-base retrieval.
var SearchInfo = llm.Tool{
	Name:        SearchInfoName,
	Description: "Use vector similarity search to retrieve HMO-services-related information from the knowledge base.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Any question about HMO services that the information to answer it is not available in chat history",
			},
		},
		"required": []string{"question"},
	},
}

// ErrUnknownTool is returned for a tool name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Lookup returns the manifest registered under name.
func Lookup(name string) (llm.Tool, error) {
	switch name {
	case ExtractUserInfoName:
		return ExtractUserInfo, nil
	case SearchInfoName:
		return SearchInfo, nil
	}
	return llm.Tool{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// ValidateArguments checks JSON arguments against the tool's parameter schema.
func ValidateArguments(tool llm.Tool, arguments string) error {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.Parameters),
		gojsonschema.NewStringLoader(arguments),
	)
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", tool.Name, err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", tool.Name, strings.Join(problems, "; "))
	}
	return nil
}
