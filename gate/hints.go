package gate

import (
	"fmt"
	"strings"
)

// HintGenerator turns a failed or partial requirement evaluation into
// human-readable hints and structured improvement suggestions. Hints are
// advisory and never change the pass/fail verdict.
type HintGenerator interface {
	Kind() Kind
	Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion)
}

type lengthHints struct{}

func (lengthHints) Kind() Kind { return KindContentLength }

func (lengthHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	c := req.Criteria.Length
	length, _ := res.Details["length"].(int)

	if c.Min > 0 && length < c.Min {
		return []string{fmt.Sprintf("expand the content by at least %d characters", c.Min-length)},
			[]ImprovementSuggestion{{
				Type:     KindContentLength,
				Priority: PriorityHigh,
				Message:  fmt.Sprintf("content is %d characters short of the %d minimum", c.Min-length, c.Min),
			}}
	}
	return []string{fmt.Sprintf("shorten the content to at most %d characters", c.Max)},
		[]ImprovementSuggestion{{
			Type:     KindContentLength,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("content exceeds the %d character maximum", c.Max),
		}}
}

type keywordHints struct{}

func (keywordHints) Kind() Kind { return KindKeywords }

func (keywordHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	missing, _ := res.Details["missing"].([]string)
	if len(missing) == 0 {
		return nil, nil
	}

	hints := []string{fmt.Sprintf("mention the missing keywords: %s", strings.Join(missing, ", "))}
	suggestions := make([]ImprovementSuggestion, 0, len(missing))
	for _, kw := range missing {
		suggestions = append(suggestions, ImprovementSuggestion{
			Type:     KindKeywords,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("keyword %q is missing", kw),
			Example:  fmt.Sprintf("… covering %s in detail …", kw),
		})
	}
	return hints, suggestions
}

type formatHints struct{}

func (formatHints) Kind() Kind { return KindFormat }

func (formatHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	switch req.Criteria.Format.Format {
	case FormatJSON:
		return []string{"fix the JSON syntax error: " + res.Message},
			[]ImprovementSuggestion{{
				Type: KindFormat, Priority: PriorityHigh,
				Message: res.Message, AutoFixable: true,
			}}
	case FormatMarkdown:
		return []string{"add a heading line and separate paragraphs with blank lines"},
			[]ImprovementSuggestion{{
				Type: KindFormat, Priority: PriorityMedium,
				Message: "content lacks markdown structure", Example: "# Title\n\nFirst paragraph.",
				AutoFixable: true,
			}}
	default:
		return []string{"add at least one key: value line"},
			[]ImprovementSuggestion{{
				Type: KindFormat, Priority: PriorityMedium,
				Message: "content has no YAML mapping lines", Example: "name: value",
				AutoFixable: true,
			}}
	}
}

type sectionHints struct{}

func (sectionHints) Kind() Kind { return KindSections }

func (sectionHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	missing, _ := res.Details["missing"].([]string)
	if len(missing) == 0 {
		return nil, nil
	}

	suggestions := make([]ImprovementSuggestion, 0, len(missing))
	for _, section := range missing {
		suggestions = append(suggestions, ImprovementSuggestion{
			Type:     KindSections,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("section %q is missing", section),
		})
	}
	return []string{fmt.Sprintf("add the missing sections: %s", strings.Join(missing, ", "))}, suggestions
}

// readabilityHints produces targeted prose advice depending on which side
// of the target range the Flesch score fell.
type readabilityHints struct{}

func (readabilityHints) Kind() Kind { return KindReadability }

func (readabilityHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	fl, _ := res.Details["flesch"].(float64)
	min, _ := res.Details["min"].(float64)

	if fl < min {
		return []string{
				"simplify complex sentences",
				"prefer short, common words over long ones",
			}, []ImprovementSuggestion{{
				Type:     KindReadability,
				Priority: PriorityMedium,
				Message:  "text is harder to read than the target level; break long sentences up",
				Example:  "Split one 30-word sentence into two 15-word sentences.",
			}}
	}
	return []string{
			"the text reads simpler than the target level; combine short sentences or use more precise vocabulary",
		}, []ImprovementSuggestion{{
			Type:     KindReadability,
			Priority: PriorityLow,
			Message:  "text is easier than the target range; tighten the register",
		}}
}

// grammarHints emits one suggestion per distinct issue class, marking
// mechanical formatting fixes auto-fixable.
type grammarHints struct{}

func (grammarHints) Kind() Kind { return KindGrammar }

func (grammarHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	issues, _ := res.Details["issues"].([]string)
	if len(issues) == 0 {
		return nil, nil
	}

	var hints []string
	var suggestions []ImprovementSuggestion
	seen := map[string]bool{}

	for _, issue := range issues {
		switch {
		case strings.Contains(issue, "lowercase letter"):
			if !seen["capitalize"] {
				seen["capitalize"] = true
				hints = append(hints, "capitalize the first letter of each sentence")
				suggestions = append(suggestions, ImprovementSuggestion{
					Type: KindGrammar, Priority: PriorityMedium,
					Message: "sentences should start with a capital letter", AutoFixable: true,
				})
			}
		case strings.Contains(issue, `pronoun "I"`):
			if !seen["pronoun"] {
				seen["pronoun"] = true
				hints = append(hints, "capitalize the pronoun I")
				suggestions = append(suggestions, ImprovementSuggestion{
					Type: KindGrammar, Priority: PriorityMedium,
					Message: `write the pronoun "I" in upper case`, AutoFixable: true,
				})
			}
		case strings.Contains(issue, "double space"):
			if !seen["spaces"] {
				seen["spaces"] = true
				hints = append(hints, "collapse double spaces into single spaces")
				suggestions = append(suggestions, ImprovementSuggestion{
					Type: KindGrammar, Priority: PriorityLow,
					Message: "remove doubled spaces", AutoFixable: true,
				})
			}
		case strings.Contains(issue, "terminal punctuation"):
			if !seen["terminal"] {
				seen["terminal"] = true
				hints = append(hints, "end the text with terminal punctuation")
				suggestions = append(suggestions, ImprovementSuggestion{
					Type: KindGrammar, Priority: PriorityLow,
					Message: "add a closing period", AutoFixable: true,
				})
			}
		}
	}
	return hints, suggestions
}

type toneHints struct{}

func (toneHints) Kind() Kind { return KindTone }

func (toneHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	detected, _ := res.Details["detected"].(string)
	expected := string(req.Criteria.Tone.Expected)

	return []string{fmt.Sprintf("shift the tone from %s toward %s", detected, expected)},
		[]ImprovementSuggestion{{
			Type:     KindTone,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("detected tone is %s but %s is expected", detected, expected),
		}}
}

type hierarchyHints struct{}

func (hierarchyHints) Kind() Kind { return KindHierarchy }

func (hierarchyHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	issues, _ := res.Details["issues"].([]string)
	if len(issues) == 0 {
		return nil, nil
	}

	suggestions := make([]ImprovementSuggestion, 0, len(issues))
	for _, issue := range issues {
		suggestions = append(suggestions, ImprovementSuggestion{
			Type:        KindHierarchy,
			Priority:    PriorityMedium,
			Message:     issue,
			AutoFixable: strings.Contains(issue, "directly follows"),
		})
	}
	return []string{"restructure the heading hierarchy"}, suggestions
}

type codeQualityHints struct{}

func (codeQualityHints) Kind() Kind { return KindCodeQuality }

func (codeQualityHints) Hints(req Requirement, res RequirementResult) ([]string, []ImprovementSuggestion) {
	issues, _ := res.Details["issues"].([]string)
	if len(issues) == 0 {
		return nil, nil
	}

	suggestions := make([]ImprovementSuggestion, 0, len(issues))
	for _, issue := range issues {
		suggestions = append(suggestions, ImprovementSuggestion{
			Type:     KindCodeQuality,
			Priority: PriorityHigh,
			Message:  issue,
		})
	}
	return []string{"fix the flagged code spans"}, suggestions
}

// builtinHintGenerators returns the hint generators paired with the
// built-in evaluators.
func builtinHintGenerators() []HintGenerator {
	return []HintGenerator{
		lengthHints{}, keywordHints{}, formatHints{}, sectionHints{},
		readabilityHints{}, grammarHints{}, toneHints{},
		hierarchyHints{}, codeQualityHints{},
	}
}
