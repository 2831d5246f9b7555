package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"maestro/pkg/models"
)

const classifierSystemPrompt = `You classify a personal-assistant request into capabilities.

Capabilities:
- notion: store a note, memo, todo, or document
- calendar: create, change, or look up a calendar event
- gmail: send or reply to email
- link: fetch or summarize a URL

Respond with JSON only:
{"candidates":[{"capability":"notion|calendar|gmail|link","confidence":0.0,"action":"short description","depends_on":["capability"]}]}

List every capability the request plausibly asks for. Declare depends_on when
one action requires another's output (e.g. emailing attendees of a meeting
that must be scheduled first). Use low confidence for unclear requests.`

// jsonBlockRe extracts the first JSON object from a model response that may
// wrap it in prose or a code fence.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ClaudeClassifier delegates classification to Claude as a black-box
// label+confidence classifier. The router treats it identically to the
// keyword classifier; no prompt or protocol detail leaks past this type.
type ClaudeClassifier struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClassifier creates a classifier using the given API key.
// If model is empty a small fast model is used; classification does not
// benefit from a larger one.
func NewClaudeClassifier(apiKey string, model anthropic.Model) (*ClaudeClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required for the Claude classifier")
	}
	if model == "" {
		model = anthropic.ModelClaude3_5Haiku20241022
	}

	return &ClaudeClassifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// classifierResponse mirrors the JSON shape the prompt requests.
type classifierResponse struct {
	Candidates []struct {
		Capability string   `json:"capability"`
		Confidence float64  `json:"confidence"`
		Action     string   `json:"action"`
		DependsOn  []string `json:"depends_on"`
	} `json:"candidates"`
}

// Classify implements Classifier.
func (c *ClaudeClassifier) Classify(ctx context.Context, rawInput string) ([]Candidate, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: classifierSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(rawInput)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	raw := jsonBlockRe.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("classifier returned no JSON object")
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse classifier response: %w", err)
	}

	var candidates []Candidate
	for _, c := range parsed.Candidates {
		cap := models.Capability(c.Capability)
		if !cap.Valid() {
			// Unknown labels are classifier noise, not an error.
			continue
		}

		var deps []models.Capability
		for _, d := range c.DependsOn {
			if dep := models.Capability(d); dep.Valid() {
				deps = append(deps, dep)
			}
		}

		candidates = append(candidates, Candidate{
			Capability: cap,
			Confidence: c.Confidence,
			Action:     c.Action,
			DependsOn:  deps,
		})
	}
	return candidates, nil
}
