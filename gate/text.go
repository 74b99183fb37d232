package gate

import (
	"fmt"
	"strings"
	"unicode"
)

// --- readability ---

// fleschRange resolves the target Flesch Reading-Ease window.
func (c ReadabilityCriteria) fleschRange() (min, max float64) {
	if c.Min != 0 || c.Max != 0 {
		min, max = c.Min, c.Max
		if max == 0 {
			max = 100
		}
		return min, max
	}
	switch c.Level {
	case LevelBeginner:
		return 90, 100
	case LevelIntermediate:
		return 70, 89
	case LevelAdvanced:
		return 50, 69
	case LevelExpert:
		return 30, 49
	default:
		return 60, 80
	}
}

// splitSentences returns the non-empty segments between . ! ? terminators.
func splitSentences(content string) []string {
	segments := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := segments[:0]
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// countSyllables approximates syllables as vowel clusters, at least one
// per word.
func countSyllables(word string) int {
	count := 0
	inCluster := false
	for _, r := range strings.ToLower(word) {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !inCluster {
			count++
		}
		inCluster = isVowel
	}
	if count == 0 {
		count = 1
	}
	return count
}

// fleschScore computes 206.835 − 1.015×(words/sentences) − 84.6×(syllables/words).
func fleschScore(content string) (score float64, words, sentences, syllables int) {
	ws := strings.Fields(content)
	words = len(ws)
	if words == 0 {
		return 0, 0, 0, 0
	}

	sentences = len(splitSentences(content))
	if sentences == 0 {
		sentences = 1
	}

	for _, w := range ws {
		syllables += countSyllables(w)
	}

	score = 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
	return score, words, sentences, syllables
}

// readabilityEvaluator scores readability_score requirements against a
// Flesch Reading-Ease target range. The score is 1.0 inside the range,
// decays linearly toward 0 below the minimum, and decays as
// 1 − (score−max)/(100−max) above the maximum.
type readabilityEvaluator struct{}

func (readabilityEvaluator) Kind() Kind { return KindReadability }

func (readabilityEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Readability
	min, max := c.fleschRange()

	fl, words, sentences, syllables := fleschScore(content)
	details := map[string]any{
		"flesch": fl, "min": min, "max": max,
		"words": words, "sentences": sentences, "syllables": syllables,
	}

	if words == 0 {
		return RequirementResult{
			Kind: KindReadability, Passed: false, Score: 0,
			Message: "content has no words",
			Details: details,
		}
	}

	var score float64
	switch {
	case fl >= min && fl <= max:
		score = 1
	case fl < min:
		if min > 0 {
			score = fl / min
		}
	default: // fl > max
		if max < 100 {
			score = 1 - (fl-max)/(100-max)
		}
	}
	if score < 0 {
		score = 0
	}

	return RequirementResult{
		Kind:    KindReadability,
		Passed:  fl >= min && fl <= max,
		Score:   score,
		Message: fmt.Sprintf("Flesch score %.1f (target %.0f-%.0f)", fl, min, max),
		Details: details,
	}
}

// --- grammar ---

// maxIssues returns the issue budget for a strength.
func (c GrammarCriteria) maxIssues() int {
	switch c.Strength {
	case GrammarBasic:
		return 10
	case GrammarStrict:
		return 2
	default:
		return 5
	}
}

// grammarIssues runs the heuristic checks and returns one message per
// issue found.
func grammarIssues(content string) []string {
	var issues []string

	for _, sentence := range splitSentences(content) {
		for _, r := range sentence {
			if unicode.IsLetter(r) {
				if unicode.IsLower(r) {
					issues = append(issues, fmt.Sprintf("sentence starts with a lowercase letter: %q", truncate(sentence, 40)))
				}
				break
			}
		}
	}

	for _, word := range strings.Fields(content) {
		token := strings.TrimRight(word, `.,!?;:"')`)
		if token == "i" || strings.HasPrefix(token, "i'") {
			issues = append(issues, `the pronoun "I" is not capitalized`)
		}
	}

	if n := strings.Count(content, "  "); n > 0 {
		for i := 0; i < n; i++ {
			issues = append(issues, "double space found")
		}
	}

	trimmed := strings.TrimSpace(content)
	if trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		issues = append(issues, "missing terminal punctuation")
	}

	return issues
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// grammarEvaluator scores grammar_quality requirements. The issue count
// is compared against the strength's budget; the score decays as
// max(0, 1 − issues/(2×maxIssues)).
type grammarEvaluator struct{}

func (grammarEvaluator) Kind() Kind { return KindGrammar }

func (grammarEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Grammar
	budget := c.maxIssues()
	issues := grammarIssues(content)

	score := 1 - float64(len(issues))/float64(2*budget)
	if score < 0 {
		score = 0
	}

	return RequirementResult{
		Kind:    KindGrammar,
		Passed:  len(issues) <= budget,
		Score:   score,
		Message: fmt.Sprintf("%d grammar issues (budget %d)", len(issues), budget),
		Details: map[string]any{"issues": issues, "budget": budget},
	}
}

// --- tone ---

// toneLexicon maps each tone bucket to its marker keywords. Keyword-bucket
// counting is a deterministic heuristic, not a language model.
var toneLexicon = map[Tone][]string{
	ToneProfessional: {
		"therefore", "furthermore", "consequently", "regarding",
		"accordingly", "moreover", "pursuant", "hereby",
	},
	ToneTechnical: {
		"implementation", "algorithm", "function", "interface",
		"module", "configuration", "parameter", "database", "protocol",
	},
	ToneCasual: {
		"gonna", "wanna", "kinda", "stuff", "cool", "yeah", "hey", "awesome",
	},
	ToneFriendly: {
		"please", "thanks", "thank you", "welcome", "glad", "happy to", "great",
	},
}

// toneOrder fixes the tie-break order for bucket selection.
var toneOrder = []Tone{ToneProfessional, ToneTechnical, ToneCasual, ToneFriendly}

// detectTone classifies content into a tone bucket with a confidence.
// Content with no marker hits is neutral with full confidence.
func detectTone(content string) (Tone, float64) {
	lower := strings.ToLower(content)

	total := 0
	counts := make(map[Tone]int, len(toneOrder))
	for tone, markers := range toneLexicon {
		for _, marker := range markers {
			n := strings.Count(lower, marker)
			counts[tone] += n
			total += n
		}
	}

	if total == 0 {
		return ToneNeutral, 1
	}

	best := toneOrder[0]
	for _, tone := range toneOrder[1:] {
		if counts[tone] > counts[best] {
			best = tone
		}
	}
	return best, float64(counts[best]) / float64(total)
}

// defaultToneConfidence is the minimum confidence when none is configured.
const defaultToneConfidence = 0.7

// toneEvaluator scores tone_analysis requirements: the detected bucket
// must equal the expected tone with at least the configured confidence.
type toneEvaluator struct{}

func (toneEvaluator) Kind() Kind { return KindTone }

func (toneEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	c := req.Criteria.Tone
	minConfidence := c.MinConfidence
	if minConfidence <= 0 {
		minConfidence = defaultToneConfidence
	}

	detected, confidence := detectTone(content)
	passed := detected == c.Expected && confidence >= minConfidence

	score := 0.0
	if detected == c.Expected {
		score = confidence
	}

	return RequirementResult{
		Kind:    KindTone,
		Passed:  passed,
		Score:   score,
		Message: fmt.Sprintf("detected tone %s (confidence %.2f), expected %s", detected, confidence, c.Expected),
		Details: map[string]any{
			"detected":       string(detected),
			"confidence":     confidence,
			"min_confidence": minConfidence,
		},
	}
}
