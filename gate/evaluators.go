package gate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// lengthEvaluator scores content_length requirements. The score is
// binary: inside the bounds is 1.0, outside is 0.0.
type lengthEvaluator struct{}

func (lengthEvaluator) Kind() Kind { return KindContentLength }

func (lengthEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Length
	length := len(content)

	details := map[string]any{"length": length, "min": c.Min, "max": c.Max}

	if c.Min > 0 && length < c.Min {
		return RequirementResult{
			Kind: KindContentLength, Passed: false, Score: 0,
			Message: fmt.Sprintf("content is %d characters, below the minimum of %d", length, c.Min),
			Details: details,
		}
	}
	if c.Max > 0 && length > c.Max {
		return RequirementResult{
			Kind: KindContentLength, Passed: false, Score: 0,
			Message: fmt.Sprintf("content is %d characters, above the maximum of %d", length, c.Max),
			Details: details,
		}
	}

	return RequirementResult{
		Kind: KindContentLength, Passed: true, Score: 1,
		Message: fmt.Sprintf("content length %d is within bounds", length),
		Details: details,
	}
}

// keywordEvaluator scores keyword_presence requirements. The score is the
// fraction of keywords found; the requirement passes only when none are
// missing.
type keywordEvaluator struct{}

func (keywordEvaluator) Kind() Kind { return KindKeywords }

func (keywordEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Keywords
	if len(c.Keywords) == 0 {
		return RequirementResult{Kind: KindKeywords, Passed: true, Score: 1, Message: "no keywords required"}
	}

	haystack := content
	if !c.CaseSensitive {
		haystack = strings.ToLower(content)
	}

	var found, missing []string
	for _, kw := range c.Keywords {
		needle := kw
		if !c.CaseSensitive {
			needle = strings.ToLower(kw)
		}
		if strings.Contains(haystack, needle) {
			found = append(found, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	score := float64(len(found)) / float64(len(c.Keywords))
	res := RequirementResult{
		Kind:   KindKeywords,
		Passed: len(missing) == 0,
		Score:  score,
		Details: map[string]any{
			"found":   found,
			"missing": missing,
		},
	}
	if len(missing) == 0 {
		res.Message = fmt.Sprintf("all %d keywords present", len(c.Keywords))
	} else {
		res.Message = fmt.Sprintf("missing keywords: %s", strings.Join(missing, ", "))
	}
	return res
}

var (
	markdownHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	yamlKeyValueRe   = regexp.MustCompile(`(?m)^\s*[\w.-]+:\s+\S`)
)

// formatEvaluator scores format_validation requirements. JSON is parsed
// strictly; markdown and yaml use structural heuristics.
type formatEvaluator struct{}

func (formatEvaluator) Kind() Kind { return KindFormat }

func (formatEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Format
	res := RequirementResult{Kind: KindFormat, Details: map[string]any{"format": string(c.Format)}}

	switch c.Format {
	case FormatJSON:
		var v any
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			res.Message = fmt.Sprintf("invalid JSON: %v", err)
			return res
		}
		res.Passed, res.Score = true, 1
		res.Message = "valid JSON"

	case FormatMarkdown:
		hasHeader := markdownHeaderRe.MatchString(content)
		hasParagraph := strings.Contains(content, "\n\n")
		if !hasHeader {
			res.Message = "no markdown header line found"
			return res
		}
		if !hasParagraph {
			res.Message = "no blank-line-separated paragraph found"
			return res
		}
		res.Passed, res.Score = true, 1
		res.Message = "looks like markdown"

	case FormatYAML:
		if !yamlKeyValueRe.MatchString(content) {
			res.Message = "no key: value line found"
			return res
		}
		res.Passed, res.Score = true, 1
		res.Message = "looks like YAML"

	default:
		res.Message = fmt.Sprintf("unsupported format %q", c.Format)
	}

	return res
}

// sectionEvaluator scores section_validation requirements: every named
// section must appear as a literal substring. The score is the fraction
// found.
type sectionEvaluator struct{}

func (sectionEvaluator) Kind() Kind { return KindSections }

func (sectionEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Sections
	if len(c.Sections) == 0 {
		return RequirementResult{Kind: KindSections, Passed: true, Score: 1, Message: "no sections required"}
	}

	var missing []string
	found := 0
	for _, section := range c.Sections {
		if strings.Contains(content, section) {
			found++
		} else {
			missing = append(missing, section)
		}
	}

	res := RequirementResult{
		Kind:    KindSections,
		Passed:  len(missing) == 0,
		Score:   float64(found) / float64(len(c.Sections)),
		Details: map[string]any{"missing": missing, "found": found, "total": len(c.Sections)},
	}
	if len(missing) == 0 {
		res.Message = fmt.Sprintf("all %d sections present", len(c.Sections))
	} else {
		res.Message = fmt.Sprintf("missing sections: %s", strings.Join(missing, ", "))
	}
	return res
}
