package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lengthReq(min, max int) Requirement {
	return Requirement{Kind: KindContentLength, Criteria: Criteria{Length: &LengthCriteria{Min: min, Max: max}}}
}

func TestLengthEvaluator(t *testing.T) {
	t.Parallel()

	e := lengthEvaluator{}

	short := e.Evaluate(strings.Repeat("x", 50), lengthReq(100, 5000))
	assert.False(t, short.Passed)
	assert.Equal(t, 0.0, short.Score)
	assert.Contains(t, short.Message, "below the minimum")

	ok := e.Evaluate(strings.Repeat("x", 200), lengthReq(100, 5000))
	assert.True(t, ok.Passed)
	assert.Equal(t, 1.0, ok.Score)

	long := e.Evaluate(strings.Repeat("x", 6000), lengthReq(100, 5000))
	assert.False(t, long.Passed)
	assert.Contains(t, long.Message, "above the maximum")

	unbounded := e.Evaluate("anything", lengthReq(0, 0))
	assert.True(t, unbounded.Passed)
}

func TestKeywordEvaluator(t *testing.T) {
	t.Parallel()

	e := keywordEvaluator{}
	req := Requirement{Kind: KindKeywords, Criteria: Criteria{
		Keywords: &KeywordCriteria{Keywords: []string{"analysis", "quality"}},
	}}

	half := e.Evaluate("the analysis is complete", req)
	assert.False(t, half.Passed)
	assert.Equal(t, 0.5, half.Score)
	assert.Equal(t, []string{"quality"}, half.Details["missing"])

	full := e.Evaluate("the Analysis covers QUALITY too", req)
	assert.True(t, full.Passed)
	assert.Equal(t, 1.0, full.Score)
}

func TestKeywordEvaluator_CaseSensitive(t *testing.T) {
	t.Parallel()

	e := keywordEvaluator{}
	req := Requirement{Kind: KindKeywords, Criteria: Criteria{
		Keywords: &KeywordCriteria{Keywords: []string{"API"}, CaseSensitive: true},
	}}

	assert.False(t, e.Evaluate("the api surface", req).Passed)
	assert.True(t, e.Evaluate("the API surface", req).Passed)
}

func formatReq(f ContentFormat) Requirement {
	return Requirement{Kind: KindFormat, Criteria: Criteria{Format: &FormatCriteria{Format: f}}}
}

func TestFormatEvaluator_JSON(t *testing.T) {
	t.Parallel()

	e := formatEvaluator{}

	assert.True(t, e.Evaluate(`{"a": [1, 2]}`, formatReq(FormatJSON)).Passed)

	bad := e.Evaluate(`{"a": }`, formatReq(FormatJSON))
	assert.False(t, bad.Passed)
	assert.Contains(t, bad.Message, "invalid JSON")
}

func TestFormatEvaluator_Markdown(t *testing.T) {
	t.Parallel()

	e := formatEvaluator{}

	good := "# Title\n\nA paragraph of text."
	assert.True(t, e.Evaluate(good, formatReq(FormatMarkdown)).Passed)

	noHeader := e.Evaluate("just a paragraph\n\nand another", formatReq(FormatMarkdown))
	assert.False(t, noHeader.Passed)
	assert.Contains(t, noHeader.Message, "header")

	noParagraph := e.Evaluate("# Title only", formatReq(FormatMarkdown))
	assert.False(t, noParagraph.Passed)
}

func TestFormatEvaluator_YAML(t *testing.T) {
	t.Parallel()

	e := formatEvaluator{}
	assert.True(t, e.Evaluate("name: value\nother: thing", formatReq(FormatYAML)).Passed)
	assert.False(t, e.Evaluate("no mapping lines here", formatReq(FormatYAML)).Passed)
}

func TestSectionEvaluator(t *testing.T) {
	t.Parallel()

	e := sectionEvaluator{}
	req := Requirement{Kind: KindSections, Criteria: Criteria{
		Sections: &SectionCriteria{Sections: []string{"## Overview", "## Results", "## Conclusion"}},
	}}

	content := "## Overview\ntext\n## Results\nmore text"
	res := e.Evaluate(content, req)
	assert.False(t, res.Passed)
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)
	assert.Equal(t, []string{"## Conclusion"}, res.Details["missing"])

	full := e.Evaluate(content+"\n## Conclusion\ndone", req)
	assert.True(t, full.Passed)
	assert.Equal(t, 1.0, full.Score)
}
