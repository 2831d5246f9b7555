package router

import (
	"context"
	"strings"

	"maestro/pkg/models"
)

// capabilityKeywords maps each capability to the phrases that indicate it.
// Confidence grows with the number of distinct matches.
var capabilityKeywords = map[models.Capability][]string{
	models.CapabilityNotion:   {"note", "memo", "todo", "write down", "remember", "document", "record"},
	models.CapabilityCalendar: {"schedule", "meeting", "calendar", "appointment", "event", "book"},
	models.CapabilityGmail:    {"email", "mail", "reply", "send to", "attendees"},
	models.CapabilityLink:     {"http://", "https://", "summarize", "link"},
}

// orderingRules declares which capability's output another requires when both
// appear in one request. Mailing attendees needs the scheduled event; storing
// a summary needs the fetched link.
var orderingRules = map[models.Capability][]models.Capability{
	models.CapabilityGmail:  {models.CapabilityCalendar},
	models.CapabilityNotion: {models.CapabilityLink},
}

// KeywordClassifier is a deterministic rule-based classifier. It is the
// default when no reasoning collaborator is configured and the fixture
// classifier used throughout the tests.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify scores each capability by its keyword matches in the input.
// One match scores 0.65; each additional distinct match adds 0.1, capped at 0.95.
func (k *KeywordClassifier) Classify(_ context.Context, rawInput string) ([]Candidate, error) {
	input := strings.ToLower(rawInput)

	matched := make(map[models.Capability]int)
	for _, cap := range models.Capabilities() {
		for _, kw := range capabilityKeywords[cap] {
			if strings.Contains(input, kw) {
				matched[cap]++
			}
		}
	}

	var candidates []Candidate
	for _, cap := range models.Capabilities() {
		hits := matched[cap]
		if hits == 0 {
			continue
		}

		confidence := 0.65 + 0.1*float64(hits-1)
		if confidence > 0.95 {
			confidence = 0.95
		}

		var deps []models.Capability
		for _, required := range orderingRules[cap] {
			if matched[required] > 0 {
				deps = append(deps, required)
			}
		}

		candidates = append(candidates, Candidate{
			Capability: cap,
			Confidence: confidence,
			Action:     rawInput,
			DependsOn:  deps,
		})
	}

	return candidates, nil
}
