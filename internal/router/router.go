// Package router classifies raw requests into intents.
package router

import (
	"context"
	"fmt"
	"sort"

	"maestro/pkg/models"
)

// Candidate is one capability proposed by a classifier, with its confidence
// and any ordering hints the classifier declared.
type Candidate struct {
	// Capability is the proposed collaborator category.
	Capability models.Capability
	// Confidence is the classifier's confidence in [0, 1].
	Confidence float64
	// Action is a short description of the proposed action.
	Action string
	// DependsOn lists capabilities whose output this action requires.
	DependsOn []models.Capability
}

// Classifier is the black-box classification collaborator. Implementations
// return every plausible capability with a confidence score; the router
// applies the floor and the compound tie-break.
type Classifier interface {
	Classify(ctx context.Context, rawInput string) ([]Candidate, error)
}

// ClassificationError indicates no capability matched above the confidence floor.
// It is fatal: the session ends at INTENT_ANALYZED without retry.
type ClassificationError struct {
	// Input is the raw request that failed to classify.
	Input string
	// Floor is the confidence floor that was applied.
	Floor float64
	// Best is the highest confidence seen, zero if no candidates at all.
	Best float64
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	return fmt.Sprintf("no capability matched above confidence floor %.2f (best %.2f)", e.Floor, e.Best)
}

// Router applies the confidence floor and compound tie-break over a classifier.
type Router struct {
	classifier Classifier
	floor      float64
}

// New creates a Router with the given classifier and confidence floor.
func New(classifier Classifier, floor float64) *Router {
	return &Router{classifier: classifier, floor: floor}
}

// Classify produces an immutable Intent for the raw input.
//
// Candidates below the floor are discarded. If none remain, a
// *ClassificationError is returned. If exactly one remains the intent is
// simple. If several remain the compound flag is forced true and all
// exceeding capabilities are carried forward as decomposition hints,
// ranked by confidence descending.
func (r *Router) Classify(ctx context.Context, rawInput string) (models.Intent, error) {
	candidates, err := r.classifier.Classify(ctx, rawInput)
	if err != nil {
		return models.Intent{}, fmt.Errorf("classifier: %w", err)
	}

	var best float64
	var passing []Candidate
	for _, c := range candidates {
		if c.Confidence > best {
			best = c.Confidence
		}
		if c.Confidence >= r.floor {
			passing = append(passing, c)
		}
	}

	if len(passing) == 0 {
		return models.Intent{}, &ClassificationError{Input: rawInput, Floor: r.floor, Best: best}
	}

	sort.SliceStable(passing, func(i, j int) bool {
		return passing[i].Confidence > passing[j].Confidence
	})

	hints := make([]models.Hint, 0, len(passing))
	for _, c := range passing {
		hints = append(hints, models.Hint{
			Capability: c.Capability,
			Confidence: c.Confidence,
			Action:     c.Action,
			DependsOn:  c.DependsOn,
		})
	}

	return models.Intent{
		Kind:       passing[0].Capability,
		IsCompound: len(passing) > 1,
		Confidence: passing[0].Confidence,
		Hints:      hints,
	}, nil
}
