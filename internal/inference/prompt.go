// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// SystemPrompt is sent as the system message with every paragraph.
const SystemPrompt = `
Extract policy rules from the given paragraph of a document. 
Format your response as a JSON object with the following structure:
{
  "title": "Short, clear title of the rule",
  "description": "Detailed description that clearly explains the criteria that must be met to match this rule"
}
Only return the JSON object, nothing else. If there's no clear rule in the paragraph, respond with:
{
  "title": "` + types.SentinelTitle + `",
  "description": "This paragraph does not contain an extractable policy rule."
}
`

// ruleResponse is the object the model is asked to return. Pointers
// distinguish a missing field from an empty one.
type ruleResponse struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// newID assigns rule identifiers. Tests replace it for stable output.
var newID = uuid.NewString

// parseRule converts the model's message content into an Outcome.
func parseRule(content string) (Outcome, error) {
	var resp ruleResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return Outcome{}, &ParseError{Content: content, Err: err}
	}
	if resp.Title == nil {
		return Outcome{}, &ParseError{Content: content, Err: errors.New(`missing "title" field`)}
	}
	if resp.Description == nil {
		return Outcome{}, &ParseError{Content: content, Err: errors.New(`missing "description" field`)}
	}

	title := strings.TrimSpace(*resp.Title)
	if title == "" {
		return Outcome{}, &ParseError{Content: content, Err: errors.New(`empty "title" field`)}
	}
	if title == types.SentinelTitle {
		return NotFound(), nil
	}

	return Found(types.Rule{
		ID:          newID(),
		Title:       title,
		Description: strings.TrimSpace(*resp.Description),
	}), nil
}
