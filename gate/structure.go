package gate

import (
	"fmt"
	"regexp"
	"strings"
)

// --- heading hierarchy ---

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

type heading struct {
	depth int
	line  int
	text  string
}

// parseHeadings extracts Markdown heading lines with their depth.
func parseHeadings(content string) []heading {
	var out []heading
	for i, line := range strings.Split(content, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			out = append(out, heading{depth: len(m[1]), line: i + 1, text: m[2]})
		}
	}
	return out
}

// hierarchyEvaluator scores hierarchy_validation requirements: heading
// depth within the limit, an H1 when required, and no two consecutive
// headings without intervening content. The score decays by a quarter
// per issue.
type hierarchyEvaluator struct{}

func (hierarchyEvaluator) Kind() Kind { return KindHierarchy }

func (hierarchyEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Hierarchy
	headings := parseHeadings(content)

	var issues []string

	if c.MaxDepth > 0 {
		for _, h := range headings {
			if h.depth > c.MaxDepth {
				issues = append(issues, fmt.Sprintf("heading %q on line %d exceeds max depth %d", h.text, h.line, c.MaxDepth))
			}
		}
	}

	if c.RequireH1 {
		hasH1 := false
		for _, h := range headings {
			if h.depth == 1 {
				hasH1 = true
				break
			}
		}
		if !hasH1 {
			issues = append(issues, "no top-level heading found")
		}
	}

	lines := strings.Split(content, "\n")
	lastHeadingLine := -1
	for _, h := range headings {
		if lastHeadingLine >= 0 {
			hasContent := false
			for _, between := range lines[lastHeadingLine : h.line-1] {
				if strings.TrimSpace(between) != "" {
					hasContent = true
					break
				}
			}
			if !hasContent {
				issues = append(issues, fmt.Sprintf("heading %q on line %d directly follows another heading", h.text, h.line))
			}
		}
		lastHeadingLine = h.line
	}

	score := 1 - 0.25*float64(len(issues))
	if score < 0 {
		score = 0
	}

	res := RequirementResult{
		Kind:    KindHierarchy,
		Passed:  len(issues) == 0,
		Score:   score,
		Details: map[string]any{"headings": len(headings), "issues": issues},
	}
	if len(issues) == 0 {
		res.Message = fmt.Sprintf("%d headings, hierarchy is sound", len(headings))
	} else {
		res.Message = fmt.Sprintf("%d hierarchy issues", len(issues))
	}
	return res
}

// --- code quality ---

var (
	fencedCodeRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	branchRe     = regexp.MustCompile(`\b(if|else|for|while|switch|case|catch|try)\b|&&|\|\|`)
)

// extractCodeSpans returns fenced block bodies followed by inline spans.
func extractCodeSpans(content string) []string {
	var spans []string
	stripped := content

	for _, m := range fencedCodeRe.FindAllStringSubmatch(content, -1) {
		spans = append(spans, m[1])
	}
	stripped = fencedCodeRe.ReplaceAllString(stripped, "")

	for _, m := range inlineCodeRe.FindAllStringSubmatch(stripped, -1) {
		spans = append(spans, m[1])
	}
	return spans
}

// bracketsBalanced checks ()[]{} pairing with a stack.
func bracketsBalanced(code string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range code {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// approxComplexity is 1 plus the count of branching keywords and boolean
// connectors, a rough cyclomatic estimate.
func approxComplexity(code string) int {
	return 1 + len(branchRe.FindAllString(code, -1))
}

// codeQualityEvaluator scores code_quality requirements over fenced and
// inline code spans. The score is the fraction of checks that passed
// across all spans.
type codeQualityEvaluator struct{}

func (codeQualityEvaluator) Kind() Kind { return KindCodeQuality }

func (codeQualityEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Code
	spans := extractCodeSpans(content)

	if len(spans) == 0 {
		return RequirementResult{
			Kind: KindCodeQuality, Passed: true, Score: 1,
			Message: "no code spans found",
			Details: map[string]any{"spans": 0},
		}
	}

	checks, passed := 0, 0
	var issues []string

	for i, span := range spans {
		if c.CheckBrackets {
			checks++
			if bracketsBalanced(span) {
				passed++
			} else {
				issues = append(issues, fmt.Sprintf("code span %d has unbalanced brackets", i+1))
			}
		}
		for _, token := range c.DisallowedTokens {
			checks++
			if !strings.Contains(span, token) {
				passed++
			} else {
				issues = append(issues, fmt.Sprintf("code span %d uses disallowed token %q", i+1, token))
			}
		}
		if c.MaxComplexity > 0 {
			checks++
			if complexity := approxComplexity(span); complexity <= c.MaxComplexity {
				passed++
			} else {
				issues = append(issues, fmt.Sprintf("code span %d complexity %d exceeds limit %d", i+1, approxComplexity(span), c.MaxComplexity))
			}
		}
	}

	if checks == 0 {
		return RequirementResult{
			Kind: KindCodeQuality, Passed: true, Score: 1,
			Message: fmt.Sprintf("%d code spans, no checks configured", len(spans)),
			Details: map[string]any{"spans": len(spans)},
		}
	}

	res := RequirementResult{
		Kind:    KindCodeQuality,
		Passed:  len(issues) == 0,
		Score:   float64(passed) / float64(checks),
		Details: map[string]any{"spans": len(spans), "checks": checks, "issues": issues},
	}
	if len(issues) == 0 {
		res.Message = fmt.Sprintf("%d code spans passed %d checks", len(spans), checks)
	} else {
		res.Message = fmt.Sprintf("%d of %d code checks failed", len(issues), checks)
	}
	return res
}
